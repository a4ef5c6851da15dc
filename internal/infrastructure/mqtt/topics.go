package mqtt

import "strings"

// DefaultTopicPrefix is the root of every chroma-sync topic.
const DefaultTopicPrefix = "chromasync"

// Topics builds chroma-sync MQTT topics under a configurable prefix.
//
//	topics := mqtt.NewTopics("chromasync")
//	topics.BroadcastPreview() // "chromasync/broadcast/preview"
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix. Trailing slashes are
// dropped and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

func (t Topics) join(parts ...string) string {
	p := t.prefix
	if p == "" {
		p = DefaultTopicPrefix
	}
	return p + "/" + strings.Join(parts, "/")
}

// =============================================================================
// Outbound (published by chroma-sync)
// =============================================================================

// Status is the retained online/offline topic, also used for the LWT.
func (t Topics) Status() string { return t.join("status") }

// BroadcastStatus carries Live/NotLive connectivity changes.
func (t Topics) BroadcastStatus() string { return t.join("broadcast", "status") }

// BroadcastPreview carries the latest four colors for live preview.
func (t Topics) BroadcastPreview() string { return t.join("broadcast", "preview") }

// Report carries aggregate device operation reports.
func (t Topics) Report() string { return t.join("report") }

// SyncState is the retained sync-enabled flag.
func (t Topics) SyncState() string { return t.join("sync", "state") }

// =============================================================================
// Inbound (consumed by chroma-sync)
// =============================================================================

// SyncCommand accepts on/off payloads that toggle sync.
func (t Topics) SyncCommand() string { return t.join("command", "sync") }

// BroadcastEffect is the feed for the MQTT broadcast source.
func (t Topics) BroadcastEffect() string { return t.join("broadcast", "effect") }

// PowerEvent is the feed for the MQTT power source (raw integer codes).
func (t Topics) PowerEvent() string { return t.join("power", "event") }

// All matches every topic under the prefix.
func (t Topics) All() string { return t.join("#") }
