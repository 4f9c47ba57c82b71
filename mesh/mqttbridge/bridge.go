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

// Package mqttbridge republishes accepted mesh traffic onto an external MQTT
// broker, the one sanctioned way this module lets mesh content leave the
// radio boundary (everything else is dropped silently per mesh.ErrAuthFailed's
// doc comment).
package mqttbridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// advertEvent and textEvent are the JSON bodies published to MQTT; field
// names are stable API, not Go style, since external consumers parse them.
type advertEvent struct {
	PubKeyHex string `json:"pub_key_hex"`
	Name      string `json:"name,omitempty"`
	Type      uint8  `json:"type"`
	HasLatLon bool   `json:"has_lat_lon"`
	Lat       int32  `json:"lat,omitempty"`
	Lon       int32  `json:"lon,omitempty"`
	Timestamp uint32 `json:"timestamp"`
}

type textEvent struct {
	ChannelOrPeer string `json:"channel_or_peer"`
	Text          string `json:"text"`
	Timestamp     uint32 `json:"timestamp"`
}

// Bridge holds a connected MQTT client and the topic prefix every published
// message is namespaced under.
type Bridge struct {
	client mqtt.Client
	prefix string
	log    *zap.Logger
}

// Config configures the underlying paho client.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Prefix    string // topic prefix, e.g. "meshnet/node1"
}

// Connect dials brokerURL and returns a ready Bridge. logger may be nil.
func Connect(cfg Config, logger *zap.Logger) (*Bridge, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqttbridge: connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqttbridge: connect to %s: %w", cfg.BrokerURL, err)
	}

	return &Bridge{client: client, prefix: cfg.Prefix, log: logger}, nil
}

// Close disconnects cleanly, waiting up to 250ms for in-flight publishes.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
}

// PublishAdvert republishes a verified ADVERT as JSON under
// "<prefix>/advert/<hex pub key prefix>".
func (b *Bridge) PublishAdvert(pub [32]byte, name string, nodeType uint8, hasLatLon bool, lat, lon int32, timestamp uint32) error {
	ev := advertEvent{
		PubKeyHex: hex.EncodeToString(pub[:]),
		Name:      name,
		Type:      nodeType,
		HasLatLon: hasLatLon,
		Lat:       lat,
		Lon:       lon,
		Timestamp: timestamp,
	}
	return b.publishJSON(fmt.Sprintf("%s/advert/%x", b.prefix, pub[:4]), ev)
}

// PublishText republishes a decrypted TXT_MSG/GRP_TXT body as JSON under
// "<prefix>/text/<channelOrPeer>".
func (b *Bridge) PublishText(channelOrPeer, text string, timestamp uint32) error {
	ev := textEvent{ChannelOrPeer: channelOrPeer, Text: text, Timestamp: timestamp}
	return b.publishJSON(fmt.Sprintf("%s/text/%s", b.prefix, channelOrPeer), ev)
}

func (b *Bridge) publishJSON(topic string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqttbridge: marshal: %w", err)
	}
	token := b.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqttbridge: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		b.log.Warn("mqtt publish failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	return nil
}
