package ingest

import (
	"crypto/md5"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/model"
)

// Players remembers what a server's log revealed about each player before
// the join line: the account UUID and the address they connected from.
type Players struct {
	mu    sync.Mutex
	ids   map[string]uuid.UUID
	addrs map[string]string
}

func NewPlayers() *Players {
	return &Players{ids: map[string]uuid.UUID{}, addrs: map[string]string{}}
}

func (p *Players) Learn(name string, id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[strings.ToLower(name)] = id
}

func (p *Players) SetAddress(name, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addrs[strings.ToLower(name)] = addr
}

// TakeAddress returns and forgets the address recorded for name.
func (p *Players) TakeAddress(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.ToLower(name)
	addr := p.addrs[key]
	delete(p.addrs, key)
	return addr
}

// Identity falls back to the offline-mode UUID when the log never named
// the player's account.
func (p *Players) Identity(name string) model.Identity {
	p.mu.Lock()
	id, ok := p.ids[strings.ToLower(name)]
	p.mu.Unlock()
	if !ok {
		id = OfflineUUID(name)
	}
	return model.Identity{ID: id, Name: name}
}

// OfflineUUID derives the version 3 UUID an offline-mode server assigns to
// name.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	return uuid.UUID(sum)
}
