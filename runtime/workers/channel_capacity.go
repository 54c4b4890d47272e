package workers

import (
	"reflect"
)

type NamedChannel struct {
	Name    string
	Channel any
}

type ChannelUsage struct {
	Name     string
	Length   int
	Capacity int
}

// channelUsage reads len and cap of each channel.
// Reading them is non-blocking, so this won't interfere with other goroutines.
// Values that are not channels are skipped.
func channelUsage(channels []NamedChannel) []ChannelUsage {
	usages := make([]ChannelUsage, 0, len(channels))
	for _, nc := range channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			continue
		}
		usages = append(usages, ChannelUsage{Name: nc.Name, Length: v.Len(), Capacity: v.Cap()})
	}
	return usages
}
