// Package mqtt provides MQTT client connectivity for chroma-sync.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and exponential backoff
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) on the retained status topic
//
// MQTT is optional. When enabled it carries:
//
//	chromasync/status              retained online/offline (LWT)
//	chromasync/broadcast/status    Live/NotLive changes
//	chromasync/broadcast/preview   latest four colors
//	chromasync/report              aggregate device operation reports
//	chromasync/sync/state          retained sync flag
//	chromasync/command/sync        inbound on/off
//	chromasync/broadcast/effect    inbound color feed (mqtt broadcast source)
//	chromasync/power/event         inbound raw power codes (mqtt power source)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().SyncCommand(), 1,
//	    func(topic string, payload []byte) error {
//	        commands <- string(payload)
//	        return nil
//	    })
package mqtt
