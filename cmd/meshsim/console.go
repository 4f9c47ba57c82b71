/*
 * meshnet LoRa store-and-forward mesh engine.
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lx7m/meshnet/mesh"
)

// Console drives a single Node interactively, offering the small set of
// commands SPEC_FULL.md's external interface names: adv, send, stats,
// setclock, and `set AF=`.
type Console struct {
	node *Node
	out  io.Writer
}

// NewConsole wraps node for interactive use, writing output to out.
func NewConsole(node *Node, out io.Writer) *Console {
	return &Console{node: node, out: out}
}

// RunREPL reads commands from in until EOF or a `quit`/`exit` line.
func (c *Console) RunREPL(in io.Reader) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(c.out, "meshsim node %q ready. Type 'help' for commands.\n", c.node.Name)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		if err := c.Dispatch(line); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

// Dispatch parses and executes a single command line.
func (c *Console) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "help":
		fmt.Fprintln(c.out, "commands: adv | send <name> <text...> | chan join <name> <passphrase> | chan send <name> <text...> | contacts | contact rm <pubkey-hex-prefix> | stats [reset] | setclock <unix_ts> | set af=<factor> | quit")
		return nil

	case "adv":
		return c.cmdAdvert()

	case "send":
		if len(fields) < 3 {
			return fmt.Errorf("usage: send <name> <text...>")
		}
		return c.cmdSend(fields[1], strings.Join(fields[2:], " "))

	case "contact":
		if len(fields) != 3 || fields[1] != "rm" {
			return fmt.Errorf("usage: contact rm <pubkey-hex-prefix>")
		}
		return c.cmdContactRemove(fields[2])

	case "chan":
		if len(fields) < 2 {
			return fmt.Errorf("usage: chan join <name> <passphrase> | chan send <name> <text...>")
		}
		switch fields[1] {
		case "join":
			if len(fields) < 4 {
				return fmt.Errorf("usage: chan join <name> <passphrase>")
			}
			return c.cmdChannelJoin(fields[2], strings.Join(fields[3:], " "))
		case "send":
			if len(fields) < 4 {
				return fmt.Errorf("usage: chan send <name> <text...>")
			}
			return c.cmdChannelSend(fields[2], strings.Join(fields[3:], " "))
		default:
			return fmt.Errorf("unknown chan subcommand %q", fields[1])
		}

	case "contacts":
		return c.cmdContacts()

	case "stats":
		if len(fields) == 2 && fields[1] == "reset" {
			c.node.Dispatcher.ResetStats()
			fmt.Fprintln(c.out, "stats reset")
			return nil
		}
		return c.cmdStats()

	case "setclock":
		if len(fields) != 2 {
			return fmt.Errorf("usage: setclock <unix_ts>")
		}
		ts, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
		c.node.Clock.SetCurrentTime(uint32(ts))
		return nil

	case "set":
		if len(fields) != 2 || !strings.HasPrefix(strings.ToLower(fields[1]), "af=") {
			return fmt.Errorf("usage: set af=<factor>")
		}
		v, err := strconv.ParseFloat(fields[1][3:], 32)
		if err != nil {
			return fmt.Errorf("invalid factor: %w", err)
		}
		c.node.Behavior.SetAirtimeBudgetFactor(float32(v))
		return nil

	default:
		return fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
}

func (c *Console) cmdAdvert() error {
	data := mesh.AdvertData{Type: mesh.AdvertTypeChat, Name: c.node.Name}
	pkt, err := c.node.Mesh.CreateAdvert(c.node.Clock.CurrentTime(), mesh.EncodeAdvertData(data))
	if err != nil {
		return err
	}
	if err := c.node.Mesh.SendFlood(pkt, 0); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "advert sent")
	return nil
}

func (c *Console) cmdSend(name, text string) error {
	contact := c.node.Contacts.SearchByPrefix(name)
	if len(contact) == 0 {
		return fmt.Errorf("%q: %w", name, mesh.ErrUnknownContact)
	}
	_, err := c.node.Mesh.SendTextMessage(c.node.Contacts, contact[0], c.node.Clock.CurrentTime(), 0, text, 30000)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "message sent")
	return nil
}

func (c *Console) cmdChannelJoin(name, passphrase string) error {
	key := sha256.Sum256([]byte(passphrase))
	ch := mesh.NewGroupChannel(name, key)
	if !c.node.Channels.Add(ch) {
		return fmt.Errorf("channel table full")
	}
	fmt.Fprintf(c.out, "joined channel %q (hash=%02x)\n", name, ch.Hash)
	return nil
}

func (c *Console) cmdChannelSend(name, text string) error {
	var target *mesh.GroupChannel
	for _, ch := range allChannels(c.node.Channels) {
		if ch.Name == name {
			cp := ch
			target = &cp
			break
		}
	}
	if target == nil {
		return fmt.Errorf("not joined to channel %q", name)
	}
	pkt, err := c.node.Mesh.CreateGroupDatagram(mesh.PayloadGrpTxt, *target, c.node.Clock.CurrentTime(), []byte(text))
	if err != nil {
		return err
	}
	if err := c.node.Mesh.SendFlood(pkt, 0); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "channel message sent")
	return nil
}

func (c *Console) cmdContacts() error {
	now := c.node.Clock.CurrentTime()
	for _, contact := range c.node.Contacts.SearchByPrefix("") {
		age := time.Duration(int64(now)-int64(contact.LastAdvertTimestamp)) * time.Second
		loc := ""
		if contact.HasLatLon {
			loc = fmt.Sprintf(" @(%.5f,%.5f)", contact.LatF(), contact.LonF())
		}
		fmt.Fprintf(c.out, "  %-16s type=%d path=%v last advert %s%s\n",
			contact.Name, contact.Type, contact.OutPath, mesh.FormatRelativeAge(age), loc)
	}
	return nil
}

// cmdContactRemove drops the contact whose public key starts with hexPrefix,
// looked up the same way the chat UI would resolve a partial key the user
// pasted in.
func (c *Console) cmdContactRemove(hexPrefix string) error {
	prefix, err := hex.DecodeString(hexPrefix)
	if err != nil {
		return fmt.Errorf("invalid hex prefix: %w", err)
	}
	contact := c.node.Contacts.LookupByPubKeyPrefix(prefix)
	if contact == nil {
		return fmt.Errorf("no contact matches prefix %q", hexPrefix)
	}
	name := contact.Name
	c.node.Contacts.RemoveContact(contact.ID.PubKey)
	fmt.Fprintf(c.out, "removed contact %q\n", name)
	return nil
}

func (c *Console) cmdStats() error {
	d := c.node.Dispatcher
	fmt.Fprintf(c.out, "airtime=%dms sent(flood=%d direct=%d) recv(flood=%d direct=%d) pool_free=%d\n",
		d.TotalAirTime(), d.NumSentFlood(), d.NumSentDirect(), d.NumRecvFlood(), d.NumRecvDirect(), c.node.Mgr.FreeCount())
	return nil
}

// allChannels is a small helper exposing ChannelTable's contents for name
// lookup, since ChannelTable itself only exposes hash-keyed search.
func allChannels(t *mesh.ChannelTable) []mesh.GroupChannel {
	var out []mesh.GroupChannel
	for h := 0; h < 256; h++ {
		out = append(out, t.SearchChannelsByHash(byte(h))...)
	}
	return out
}
