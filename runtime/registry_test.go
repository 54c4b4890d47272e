package runtime

import (
	"chat-relay/domain"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Identity{ID: "u-alice", Username: "alice"}
	bob   = domain.Identity{ID: "u-bob", Username: "bob"}
	carol = domain.Identity{ID: "u-carol", Username: "carol"}
)

func TestRegistry_Register_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given no user is connected
	req.Empty(registry.OnlineIdentities())

	// When a connection registers
	conn, cameOnline := registry.Register(alice, &Sink{})

	// Then the identity is online with exactly that connection
	req.True(cameOnline)
	req.Equal([]domain.ConnectionID{conn.ID}, registry.Lookup(alice.ID))
	req.Equal([]domain.Identity{alice}, registry.OnlineIdentities())
	got, ok := registry.Get(conn.ID)
	req.True(ok)
	req.Same(conn, got)
}

func TestRegistry_Multiple_Devices_Are_One_Presence(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given two connections of the same identity
	first, cameOnline := registry.Register(alice, &Sink{})
	req.True(cameOnline)
	second, cameOnline := registry.Register(alice, &Sink{})
	req.False(cameOnline)
	req.NotEqual(first.ID, second.ID)
	req.Len(registry.OnlineIdentities(), 1)

	// When the first one leaves, the identity stays online
	_, wentOffline, found := registry.Unregister(first.ID)
	req.True(found)
	req.False(wentOffline)
	req.True(registry.IsOnline(alice.ID))

	// When the second one leaves, the identity goes offline
	_, wentOffline, found = registry.Unregister(second.ID)
	req.True(found)
	req.True(wentOffline)
	req.False(registry.IsOnline(alice.ID))
	req.Empty(registry.Lookup(alice.ID))
}

func TestRegistry_Unregister_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn, _ := registry.Register(alice, &Sink{})
	_, _, _ = registry.Unregister(conn.ID)

	// When unregistering twice
	_, wentOffline, found := registry.Unregister(conn.ID)

	// Then nothing happens
	req.False(found)
	req.False(wentOffline)
}

func TestRegistry_Concurrent_Register_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identities := []domain.Identity{alice, bob, carol}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		online  = map[domain.UserID]int{}
		offline = map[domain.UserID]int{}
		missing int
	)
	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func(identity domain.Identity) {
			defer wg.Done()
			conn, cameOnline := registry.Register(identity, &Sink{})
			_, wentOffline, found := registry.Unregister(conn.ID)
			mu.Lock()
			defer mu.Unlock()
			if cameOnline {
				online[identity.ID]++
			}
			if wentOffline {
				offline[identity.ID]++
			}
			if !found {
				missing++
			}
		}(identities[i%len(identities)])
	}
	wg.Wait()

	// Then no registration was lost or duplicated and transitions pair up
	req.Zero(missing)
	connections, ids := registry.Count()
	req.Zero(connections)
	req.Zero(ids)
	for _, identity := range identities {
		req.Equal(online[identity.ID], offline[identity.ID])
		req.GreaterOrEqual(online[identity.ID], 1)
	}
}

func TestRegistry_Online_Identities_Are_Sorted(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register(carol, &Sink{})
	registry.Register(alice, &Sink{})
	registry.Register(bob, &Sink{})
	registry.Register(alice, &Sink{})

	req.Equal([]domain.Identity{alice, bob, carol}, registry.OnlineIdentities())
	connections, ids := registry.Count()
	req.Equal(4, connections)
	req.Equal(3, ids)
}
