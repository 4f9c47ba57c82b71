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
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lx7m/meshnet/mesh/simradio"
)

func twoNodeFixture(t *testing.T, out io.Writer) (a, b *Node) {
	t.Helper()
	logger := zap.NewNop()
	medium := simradio.NewMedium(42)

	var err error
	a, err = NewNodeWithOutput("alice", medium, 2.0, logger, out)
	require.NoError(t, err)
	b, err = NewNodeWithOutput("bob", medium, 2.0, logger, out)
	require.NoError(t, err)

	go a.Run()
	go b.Run()
	t.Cleanup(func() {
		a.Stop()
		b.Stop()
	})
	return a, b
}

func TestConsoleAdvertDiscoversPeer(t *testing.T) {
	a, b := twoNodeFixture(t, os.Stdout)

	var out bytes.Buffer
	consoleA := NewConsole(a, &out)
	require.NoError(t, consoleA.Dispatch("adv"))

	require.Eventually(t, func() bool {
		return b.Contacts.Len() == 1
	}, 3*time.Second, 10*time.Millisecond, "bob should learn alice from her advert")

	contacts := b.Contacts.SearchByPrefix("alice")
	require.Len(t, contacts, 1)
	require.Equal(t, "alice", contacts[0].Name)
}

func TestConsoleSendAndAck(t *testing.T) {
	var out bytes.Buffer
	a, b := twoNodeFixture(t, &out)

	consoleA := NewConsole(a, &out)
	consoleB := NewConsole(b, &out)

	require.NoError(t, consoleA.Dispatch("adv"))
	require.Eventually(t, func() bool { return b.Contacts.Len() == 1 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, consoleB.Dispatch("adv"))
	require.Eventually(t, func() bool { return a.Contacts.Len() == 1 }, 3*time.Second, 10*time.Millisecond)

	err := consoleA.Dispatch("send bob hello from alice")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return bytes.Contains(out.Bytes(), []byte("hello from alice"))
	}, 3*time.Second, 10*time.Millisecond, "bob should have printed alice's message")

	require.Eventually(t, func() bool {
		return bytes.Contains(out.Bytes(), []byte("acknowledged"))
	}, 3*time.Second, 10*time.Millisecond, "alice should have received bob's ack")
}

func TestConsoleUnknownCommand(t *testing.T) {
	a, _ := twoNodeFixture(t, os.Stdout)
	var out bytes.Buffer
	console := NewConsole(a, &out)
	require.Error(t, console.Dispatch("not-a-real-command"))
}

func TestConsoleSetAirtimeBudgetFactor(t *testing.T) {
	a, _ := twoNodeFixture(t, os.Stdout)
	var out bytes.Buffer
	console := NewConsole(a, &out)
	require.NoError(t, console.Dispatch("set af=5.5"))
	require.Equal(t, float32(5.5), a.Behavior.AirtimeBudgetFactor())
}

func TestConsoleContactRemove(t *testing.T) {
	a, b := twoNodeFixture(t, os.Stdout)

	var out bytes.Buffer
	consoleA := NewConsole(a, &out)
	consoleB := NewConsole(b, &out)

	require.NoError(t, consoleA.Dispatch("adv"))
	require.Eventually(t, func() bool { return b.Contacts.Len() == 1 }, 3*time.Second, 10*time.Millisecond)

	alice := b.Contacts.SearchByPrefix("alice")[0]
	hexPrefix := hex.EncodeToString(alice.ID.PubKey[:4])

	require.NoError(t, consoleB.Dispatch("contact rm "+hexPrefix))
	require.Equal(t, 0, b.Contacts.Len())

	require.Error(t, consoleB.Dispatch("contact rm "+hexPrefix), "removing an already-removed contact must fail")
}

func TestConsoleStatsReset(t *testing.T) {
	a, b := twoNodeFixture(t, os.Stdout)
	var out bytes.Buffer
	consoleA := NewConsole(a, &out)

	require.NoError(t, consoleA.Dispatch("adv"))
	require.Eventually(t, func() bool { return b.Contacts.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return a.Dispatcher.NumSentFlood() > 0 }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, consoleA.Dispatch("stats reset"))
	require.Zero(t, a.Dispatcher.NumSentFlood())
}
