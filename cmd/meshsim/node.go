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
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/lx7m/meshnet/mesh"
	"github.com/lx7m/meshnet/mesh/simradio"
)

// Node bundles everything one simulated mesh participant needs: identity,
// radio, dispatcher, mesh core, and the demo MeshBehavior wired to it.
type Node struct {
	Name       string
	Self       *mesh.LocalIdentity
	Clock      *wallClock
	Radio      *simradio.Radio
	Dispatcher *mesh.Dispatcher
	Mgr        *mesh.PacketManager
	Mesh       *mesh.Mesh
	Contacts   *mesh.ContactTable
	Channels   *mesh.ChannelTable
	Behavior   *demoBehavior

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// NewNode builds and wires one node onto medium, using os.Stdout for chat
// output. airtimeBudgetFactor sets its duty-cycle multiplier (see
// mesh.DispatcherHooks.AirtimeBudgetFactor).
func NewNode(name string, medium *simradio.Medium, airtimeBudgetFactor float32, logger *zap.Logger) (*Node, error) {
	return NewNodeWithOutput(name, medium, airtimeBudgetFactor, logger, os.Stdout)
}

// NewNodeWithOutput is NewNode with an explicit chat-output writer, used by
// tests to capture what a node prints without touching the real stdout.
func NewNodeWithOutput(name string, medium *simradio.Medium, airtimeBudgetFactor float32, logger *zap.Logger, out io.Writer) (*Node, error) {
	clock := newWallClock()
	self, err := mesh.GenerateLocalIdentity(cryptoRNG{})
	if err != nil {
		return nil, fmt.Errorf("meshsim: generate identity for %s: %w", name, err)
	}

	radio := simradio.NewRadio(medium, clock)
	mgr := mesh.NewPacketManager(mesh.DefaultConfig().PoolSize)
	contacts := mesh.NewContactTable(64)
	channels := mesh.NewChannelTable(8)

	behavior := &demoBehavior{
		name:       name,
		self:       self,
		contacts:   contacts,
		channels:   channels,
		af:         airtimeBudgetFactor,
		log:        logger,
		out:        out,
		lastTS:     make(map[int]uint32),
		lastPathTS: make(map[int]uint32),
	}

	// The Dispatcher needs a *Mesh to drive OnRecvPacket, but building a Mesh
	// needs a *Dispatcher to send through: construct the Dispatcher with its
	// hooks unset, then SetHooks(m) once the Mesh exists.
	disp := mesh.NewDispatcher(radio, clock, mgr, nil, logger)
	if err := disp.Begin(); err != nil {
		return nil, fmt.Errorf("meshsim: begin dispatcher for %s: %w", name, err)
	}

	m := mesh.NewMesh(self, disp, clock, clock, cryptoRNG{}, behavior, mesh.DefaultConfig(), logger)
	behavior.mesh = m
	disp.SetHooks(m)

	return &Node{
		Name:       name,
		Self:       self,
		Clock:      clock,
		Radio:      radio,
		Dispatcher: disp,
		Mgr:        mgr,
		Mesh:       m,
		Contacts:   contacts,
		Channels:   channels,
		Behavior:   behavior,
		stopCh:     make(chan struct{}),
	}, nil
}

// Run drives Dispatcher.Loop continuously until Stop is called. Intended to
// run in its own goroutine, one per Node.
func (n *Node) Run() {
	for {
		select {
		case <-n.stopCh:
			return
		default:
			n.Dispatcher.Loop()
			for _, p := range n.Contacts.ExpirePendingAcks(n.Clock.Millis()) {
				n.Behavior.log.Debug("text message ack timed out",
					zap.String("node", n.Name), zap.String("contact", p.Contact.Name))
			}
		}
	}
}

// Stop halts this node's Run loop.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	n.stopped = true
	close(n.stopCh)
}
