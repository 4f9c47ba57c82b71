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

package mesh

import (
	"encoding/binary"

	"go.uber.org/zap"
)

// Config holds the tunable jitter windows and forwarding priorities a Mesh
// uses. Numeric defaults are implementation parameters per the port's own
// design decision, not part of the wire format.
type Config struct {
	// SendPriority is used for locally originated sends (both flood and
	// direct), always more urgent than an incidental forward.
	SendPriority uint8
	// FloodForwardPriority and DirectForwardPriority are used when this
	// node relays someone else's packet.
	FloodForwardPriority  uint8
	DirectForwardPriority uint8

	// Jitter windows, in milliseconds, applied to forwarded (not
	// originated) packets to break lock-step collisions among neighbors
	// that received the same flood simultaneously.
	FloodJitterMin  uint32
	FloodJitterMax  uint32
	DirectJitterMin uint32
	DirectJitterMax uint32

	// PoolSize sizes the underlying PacketManager.
	PoolSize int
}

// DefaultConfig returns the chosen defaults: wider jitter for flood
// forwards, since every unseen neighbor relays at once and the collision
// domain is larger than a direct chain's single next hop.
func DefaultConfig() Config {
	return Config{
		SendPriority:          0,
		FloodForwardPriority:  2,
		DirectForwardPriority: 1,
		FloodJitterMin:        100,
		FloodJitterMax:        2000,
		DirectJitterMin:       50,
		DirectJitterMax:       500,
		PoolSize:              24,
	}
}

// Mesh is the Layer-3 node: it builds and consumes typed packets, enforces
// replay protection, decides flood vs. direct forwarding, and drives an
// application-supplied MeshBehavior for everything the original firmware
// expressed as a virtual-method override.
type Mesh struct {
	self     *LocalIdentity
	disp     *Dispatcher
	clock    MillisecondClock
	rtc      RTCClock
	rng      RNG
	seen     *SeenTable
	behavior MeshBehavior
	cfg      Config
	log      *zap.Logger
}

// NewMesh wires a Mesh to its identity, Dispatcher, clocks, RNG and
// behavior. logger may be nil.
func NewMesh(self *LocalIdentity, disp *Dispatcher, clock MillisecondClock, rtc RTCClock, rng RNG, behavior MeshBehavior, cfg Config, logger *zap.Logger) *Mesh {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mesh{
		self:     self,
		disp:     disp,
		clock:    clock,
		rtc:      rtc,
		rng:      rng,
		seen:     NewSeenTable(),
		behavior: behavior,
		cfg:      cfg,
		log:      logger,
	}
}

// AirtimeBudgetFactor satisfies DispatcherHooks by delegating to behavior.
func (m *Mesh) AirtimeBudgetFactor() float32 { return m.behavior.AirtimeBudgetFactor() }

// jitter draws a uniform delay in [min, max] from the configured RNG.
func (m *Mesh) jitter(min, max uint32) uint32 {
	if max <= min {
		return min
	}
	var buf [4]byte
	m.rng.RandomBytes(buf[:])
	span := max - min + 1
	return min + binary.LittleEndian.Uint32(buf[:])%span
}

// stripPadding drops the trailing zero bytes encryptECB appended to fill the
// final block, recovering the body the sender encrypted.
func stripPadding(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func makeHeader(routeType, payloadType uint8) uint8 {
	return (routeType & phRouteMask) | ((payloadType & phTypeMask) << phTypeShift)
}

// ---- OnRecvPacket / forwarding decision ------------------------------------

// OnRecvPacket satisfies DispatcherHooks: it classifies the packet by
// payload type, invokes the matching behavior callback, then decides
// whether to re-flood or continue a direct hop.
func (m *Mesh) OnRecvPacket(pkt *Packet) DispatcherAction {
	if pkt.IsMarkedDoNotRetransmit() {
		return Release()
	}

	switch pkt.PayloadType() {
	case PayloadAdvert:
		m.handleAdvert(pkt)
	case PayloadAnonReq:
		m.handleAnonReq(pkt)
	case PayloadReq, PayloadResponse, PayloadTxtMsg:
		m.handlePeerDatagram(pkt)
	case PayloadPath:
		m.handlePath(pkt)
	case PayloadAck:
		m.handleAck(pkt)
	case PayloadGrpTxt, PayloadGrpData:
		m.handleGroup(pkt)
	case PayloadControl:
		m.handleControl(pkt)
	}
	// Trace, RawCustom and any other payload type fall straight through to
	// the forwarding decision with no local callback.

	return m.forwardDecision(pkt)
}

// forwardDecision implements the flood-vs-direct relay rule shared by every
// payload type: a flood packet is re-flooded iff unseen, allowed, and not
// path-overflowing; a direct packet continues iff its next hop is self.
func (m *Mesh) forwardDecision(pkt *Packet) DispatcherAction {
	if pkt.IsMarkedDoNotRetransmit() {
		return Release()
	}

	if pkt.IsFlood() {
		hash := packetHash(pkt)
		if m.seen.HasSeen(hash) {
			return Release()
		}
		if !m.behavior.AllowPacketForward(pkt) {
			m.seen.MarkSeen(hash)
			return Release()
		}
		if len(pkt.Path) >= MaxPathSize {
			m.seen.MarkSeen(hash)
			return Release()
		}

		var hop byte
		if pkt.PayloadType() == PayloadTrace {
			hop = byte(pkt.SNR)
		} else {
			hop = m.self.Hash1()
		}
		pkt.Path = append(pkt.Path, hop)
		m.seen.MarkSeen(hash)

		delay := m.jitter(m.cfg.FloodJitterMin, m.cfg.FloodJitterMax)
		return Retransmit(m.cfg.FloodForwardPriority, delay)
	}

	if pkt.IsDirect() {
		if len(pkt.Path) == 0 || pkt.Path[0] != m.self.Hash1() {
			return Release()
		}
		pkt.Path = pkt.Path[1:]
		delay := m.jitter(m.cfg.DirectJitterMin, m.cfg.DirectJitterMax)
		return Retransmit(m.cfg.DirectForwardPriority, delay)
	}

	return Release()
}

// ---- Receive handlers -------------------------------------------------

func (m *Mesh) handleAdvert(pkt *Packet) {
	const minLen = SigSize + PubKeySize + 4
	if len(pkt.Payload) < minLen {
		return
	}
	sig := pkt.Payload[:SigSize]
	signed := pkt.Payload[SigSize:]
	var pub [PubKeySize]byte
	copy(pub[:], signed[:PubKeySize])
	remote := NewIdentity(pub)

	var sigArr [SigSize]byte
	copy(sigArr[:], sig)
	if !remote.Verify(sigArr, signed) {
		m.log.Debug("advert signature verification failed")
		return
	}

	ts := binary.LittleEndian.Uint32(signed[PubKeySize : PubKeySize+4])
	userAppData := signed[PubKeySize+4:]
	m.behavior.OnAdvertRecv(pkt, remote, ts, userAppData)
}

func (m *Mesh) handleAnonReq(pkt *Packet) {
	const minLen = 1 + PubKeySize + CipherMacSize
	if len(pkt.Payload) < minLen {
		return
	}
	if pkt.Payload[0] != m.self.Hash1() {
		return
	}
	var ephPub [PubKeySize]byte
	copy(ephPub[:], pkt.Payload[1:1+PubKeySize])
	ephemeral := NewIdentity(ephPub)

	secret, err := m.self.SharedSecret(ephemeral)
	if err != nil {
		return
	}
	plain, ok := verifyThenDecrypt(secret, pkt.Payload[1+PubKeySize:])
	if !ok {
		m.log.Debug("anon request dropped", zap.Error(ErrAuthFailed))
		return
	}
	if len(plain) < 5 {
		return
	}
	ts := binary.LittleEndian.Uint32(plain[:4])
	subType := plain[4]
	m.behavior.OnAnonDataRecv(pkt, subType, ephemeral, ts, stripPadding(plain[5:]))
}

func (m *Mesh) handlePeerDatagram(pkt *Packet) {
	if len(pkt.Payload) < 2+CipherMacSize {
		return
	}
	if pkt.Payload[0] != m.self.Hash1() {
		return
	}
	srcHash := pkt.Payload[1]
	wire := pkt.Payload[2:]

	for _, idx := range m.behavior.SearchPeersByHash([]byte{srcHash}) {
		secret := m.behavior.GetPeerSharedSecret(idx)
		plain, ok := verifyThenDecrypt(secret, wire)
		if !ok {
			continue
		}
		if len(plain) < 4 {
			continue
		}
		ts := binary.LittleEndian.Uint32(plain[:4])
		if ts <= m.behavior.GetPeerLastTimestamp(idx) {
			// MAC matched this peer; a stale timestamp is a replay, not a miss.
			m.log.Debug("peer datagram dropped", zap.Error(ErrReplay))
			return
		}
		m.behavior.SetPeerLastTimestamp(idx, ts)
		m.behavior.OnPeerDataRecv(pkt, pkt.PayloadType(), idx, secret, ts, stripPadding(plain[4:]))
		return
	}
	m.log.Debug("peer datagram dropped", zap.Error(ErrAuthFailed))
}

func (m *Mesh) handlePath(pkt *Packet) {
	if len(pkt.Payload) < 2+CipherMacSize {
		return
	}
	if pkt.Payload[0] != m.self.Hash1() {
		return
	}
	srcHash := pkt.Payload[1]
	wire := pkt.Payload[2:]

	for _, idx := range m.behavior.SearchPeersByHash([]byte{srcHash}) {
		secret := m.behavior.GetPeerSharedSecret(idx)
		plain, ok := verifyThenDecrypt(secret, wire)
		if !ok {
			continue
		}
		if len(plain) < 5 {
			continue
		}
		ts := binary.LittleEndian.Uint32(plain[:4])
		pathLen := int(plain[4])
		if len(plain) < 5+pathLen+1 {
			continue
		}
		path := plain[5 : 5+pathLen]
		extraType := plain[5+pathLen]
		extra := plain[6+pathLen:]

		if ts <= m.behavior.GetPeerLastPathTimestamp(idx) {
			m.log.Debug("path return dropped", zap.Error(ErrReplay))
			return
		}
		m.behavior.SetPeerLastPathTimestamp(idx, ts)

		wantsReturn := m.behavior.OnPeerPathRecv(pkt, idx, secret, path, extraType, extra)
		if wantsReturn && pkt.IsFlood() {
			m.sendPathReturnReciprocal(pkt, idx, secret)
		}
		return
	}
	m.log.Debug("path return dropped", zap.Error(ErrAuthFailed))
}

func (m *Mesh) sendPathReturnReciprocal(pkt *Packet, idx int, secret [32]byte) {
	destID := m.behavior.GetPeerIdentity(idx)
	inPath := append([]byte(nil), pkt.Path...)

	out, err := m.CreatePathReturn(destID, secret, m.rtc.CurrentTime(), inPath, 0, nil)
	if err != nil {
		return
	}
	if err := m.SendDirect(out, reverseBytes(inPath)); err != nil {
		m.log.Debug("failed to send reciprocal path return", zap.Error(err))
	}
}

func (m *Mesh) handleAck(pkt *Packet) {
	if len(pkt.Payload) < MaxHashSize {
		return
	}
	var hash [MaxHashSize]byte
	copy(hash[:], pkt.Payload[:MaxHashSize])
	m.behavior.OnAckRecv(pkt, hash)
}

func (m *Mesh) handleGroup(pkt *Packet) {
	if len(pkt.Payload) < 1+CipherMacSize {
		return
	}
	chHash := pkt.Payload[0]
	wire := pkt.Payload[1:]

	channels := m.behavior.SearchChannelsByHash(chHash)
	if len(channels) == 0 {
		m.log.Debug("group datagram dropped", zap.Error(ErrUnknownChannel))
		return
	}

	for _, ch := range channels {
		plain, ok := verifyThenDecrypt(ch.Key, wire)
		if !ok {
			continue
		}
		if len(plain) < 4 {
			continue
		}
		ts := binary.LittleEndian.Uint32(plain[:4])
		m.behavior.OnGroupDataRecv(pkt, pkt.PayloadType(), ch, ts, stripPadding(plain[4:]))
		return
	}
	m.log.Debug("group datagram dropped", zap.Error(ErrAuthFailed))
}

func (m *Mesh) handleControl(pkt *Packet) {
	if len(pkt.Payload) < 1 {
		return
	}
	m.behavior.OnControlRecv(pkt, pkt.Payload[0], pkt.Payload[1:])
}

// ---- Packet builders ----------------------------------------------------

// CreateAdvert wraps a self-signed advertisement: sig || pub_key ||
// timestamp_le || user_app_data, route type FLOOD.
func (m *Mesh) CreateAdvert(timestamp uint32, userAppData []byte) (*Packet, error) {
	pkt, err := m.disp.ObtainPacket()
	if err != nil {
		return nil, err
	}

	var signed [PubKeySize + 4]byte
	copy(signed[:PubKeySize], m.self.PubKey[:])
	binary.LittleEndian.PutUint32(signed[PubKeySize:], timestamp)

	msg := append(append([]byte(nil), signed[:]...), userAppData...)
	sig := m.self.Sign(msg)

	payload := make([]byte, 0, SigSize+len(msg))
	payload = append(payload, sig[:]...)
	payload = append(payload, msg...)

	pkt.Header = makeHeader(RouteFlood, PayloadAdvert)
	pkt.Payload = payload
	return pkt, nil
}

// CreateDatagram builds a REQ/RESPONSE/TXT_MSG-framed packet: dest_hash ||
// src_hash || mac_then_encrypt(secret, timestamp_le || body), route type
// FLOOD (callers route-type-convert via SendDirect for a direct send).
func (m *Mesh) CreateDatagram(payloadType uint8, dest Identity, secret [32]byte, timestamp uint32, body []byte) (*Packet, error) {
	pkt, err := m.disp.ObtainPacket()
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(plain[:4], timestamp)
	copy(plain[4:], body)
	wire := macThenEncrypt(secret, plain)

	payload := make([]byte, 0, 2+len(wire))
	payload = append(payload, dest.Hash1(), m.self.Hash1())
	payload = append(payload, wire...)

	pkt.Header = makeHeader(RouteFlood, payloadType)
	pkt.Payload = payload
	return pkt, nil
}

// CreateAnonDatagram builds an ANON_REQ packet for first-contact traffic:
// dest_hash || self_pub_key || mac_then_encrypt(secret, timestamp_le ||
// sub_type || body).
func (m *Mesh) CreateAnonDatagram(subType uint8, dest Identity, secret [32]byte, timestamp uint32, body []byte) (*Packet, error) {
	pkt, err := m.disp.ObtainPacket()
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 5+len(body))
	binary.LittleEndian.PutUint32(plain[:4], timestamp)
	plain[4] = subType
	copy(plain[5:], body)
	wire := macThenEncrypt(secret, plain)

	payload := make([]byte, 0, 1+PubKeySize+len(wire))
	payload = append(payload, dest.Hash1())
	payload = append(payload, m.self.PubKey[:]...)
	payload = append(payload, wire...)

	pkt.Header = makeHeader(RouteFlood, PayloadAnonReq)
	pkt.Payload = payload
	return pkt, nil
}

// CreatePathReturn builds a PATH packet whose body mirrors inPath
// byte-for-byte, teaching the recipient a direct route back. Route type
// DIRECT: callers still need to attach the outbound path via SendDirect.
func (m *Mesh) CreatePathReturn(dest Identity, secret [32]byte, timestamp uint32, inPath []byte, extraType uint8, extra []byte) (*Packet, error) {
	pkt, err := m.disp.ObtainPacket()
	if err != nil {
		return nil, err
	}

	reversed := reverseBytes(inPath)
	plain := make([]byte, 0, 5+len(reversed)+len(extra))
	var tsBuf [4]byte
	binary.LittleEndian.PutUint32(tsBuf[:], timestamp)
	plain = append(plain, tsBuf[:]...)
	plain = append(plain, byte(len(reversed)))
	plain = append(plain, reversed...)
	plain = append(plain, extraType)
	plain = append(plain, extra...)
	wire := macThenEncrypt(secret, plain)

	payload := make([]byte, 0, 2+len(wire))
	payload = append(payload, dest.Hash1(), m.self.Hash1())
	payload = append(payload, wire...)

	pkt.Header = makeHeader(RouteDirect, PayloadPath)
	pkt.Payload = payload
	return pkt, nil
}

// CreateAck builds a 4-byte ACK packet, route type FLOOD.
func (m *Mesh) CreateAck(hash [MaxHashSize]byte) (*Packet, error) {
	pkt, err := m.disp.ObtainPacket()
	if err != nil {
		return nil, err
	}
	pkt.Header = makeHeader(RouteFlood, PayloadAck)
	pkt.Payload = append([]byte(nil), hash[:]...)
	return pkt, nil
}

// CreateGroupDatagram builds a GRP_TXT/GRP_DATA packet: channel_hash ||
// mac_then_encrypt(channel.Key, timestamp_le || body).
func (m *Mesh) CreateGroupDatagram(payloadType uint8, channel GroupChannel, timestamp uint32, body []byte) (*Packet, error) {
	pkt, err := m.disp.ObtainPacket()
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(plain[:4], timestamp)
	copy(plain[4:], body)
	wire := macThenEncrypt(channel.Key, plain)

	payload := make([]byte, 0, 1+len(wire))
	payload = append(payload, channel.Hash)
	payload = append(payload, wire...)

	pkt.Header = makeHeader(RouteFlood, payloadType)
	pkt.Payload = payload
	return pkt, nil
}

// ---- Send entry points --------------------------------------------------

// SendFlood enqueues pkt for flood transmission after an optional pre-delay.
func (m *Mesh) SendFlood(pkt *Packet, delayMillis uint32) error {
	pkt.Header = makeHeader(RouteFlood, pkt.PayloadType())
	return m.disp.SendPacket(pkt, m.cfg.SendPriority, delayMillis)
}

// SendDirect attaches path (already next-hop-first) to pkt, switches its
// route type to DIRECT, and enqueues it at a higher priority than
// incidental forwards.
func (m *Mesh) SendDirect(pkt *Packet, path []byte) error {
	pkt.Header = makeHeader(RouteDirect, pkt.PayloadType())
	pkt.Path = append([]byte(nil), path...)
	return m.disp.SendPacket(pkt, m.cfg.SendPriority, 0)
}

// ---- Chat-style convenience (send timeout / ACK bookkeeping) ------------

// ExpectedAckHash computes the 4-byte tag a TXT_MSG sender expects back,
// SHA-256(timestamp_le || flags || text || sender_pub_key) truncated.
func ExpectedAckHash(timestamp uint32, flags uint8, text string, senderPub [PubKeySize]byte) [MaxHashSize]byte {
	var head [5]byte
	binary.LittleEndian.PutUint32(head[:4], timestamp)
	head[4] = flags

	frag1 := append(append([]byte(nil), head[:]...), text...)
	sum := sha256Frags(frag1, senderPub[:])

	var out [MaxHashSize]byte
	copy(out[:], sum[:MaxHashSize])
	return out
}

// SendTextMessage builds and sends a TXT_MSG to contact, registering a
// PendingAck in ct keyed by the expected ACK hash. It sends direct when
// contact has a known OutPath, falling back to flood otherwise.
func (m *Mesh) SendTextMessage(ct *ContactTable, contact *Contact, timestamp uint32, flags uint8, text string, ackDeadlineMillis uint32) (*Packet, error) {
	body := make([]byte, 1+len(text))
	body[0] = flags
	copy(body[1:], text)

	pkt, err := m.CreateDatagram(PayloadTxtMsg, contact.ID, contact.Secret, timestamp, body)
	if err != nil {
		return nil, err
	}

	ack := ExpectedAckHash(timestamp, flags, text, m.self.PubKey)
	ct.TrackPendingAck(&PendingAck{ExpectedAck: ack, Deadline: m.clock.Millis() + ackDeadlineMillis, Contact: contact})

	if contact.OutPath != nil {
		err = m.SendDirect(pkt, contact.OutPath)
	} else {
		err = m.SendFlood(pkt, 0)
	}
	return pkt, err
}

// SendAck replies to sender with a 4-byte ACK tag matching hash, direct if
// outPath is known, flood otherwise.
func (m *Mesh) SendAck(hash [MaxHashSize]byte, outPath []byte) error {
	pkt, err := m.CreateAck(hash)
	if err != nil {
		return err
	}
	if outPath != nil {
		return m.SendDirect(pkt, outPath)
	}
	return m.SendFlood(pkt, 0)
}
