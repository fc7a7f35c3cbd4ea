package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/model"
)

// timestamps are bound as fixed-width UTC text so that sqlite orders them
// lexically the same way mysql orders DATETIME(6)
const tsLayout = "2006-01-02 15:04:05.000000"

var tsLayouts = []string{
	tsLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// dbTime scans DATETIME values whether the driver hands back a time.Time
// or the raw text (sqlite does the latter for computed columns).
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = x.UTC(), true
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	}
	return fmt.Errorf("cannot scan %T into timestamp", v)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range tsLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

type nullLocation struct {
	X, Y, Z sql.NullFloat64
}

func (l *nullLocation) dest() []any {
	return []any{&l.X, &l.Y, &l.Z}
}

func (l nullLocation) value() *model.Location {
	if !l.X.Valid || !l.Y.Valid || !l.Z.Valid {
		return nil
	}
	return &model.Location{X: l.X.Float64, Y: l.Y.Float64, Z: l.Z.Float64}
}

func locationArgs(loc *model.Location) []any {
	if loc == nil {
		return []any{nil, nil, nil}
	}
	return []any{loc.X, loc.Y, loc.Z}
}

func identityArgs(id *model.Identity) []any {
	if id == nil {
		return []any{nil, nil}
	}
	return []any{id.ID.String(), id.Name}
}

func nullIdentity(id uuid.NullUUID, name sql.NullString) *model.Identity {
	if !id.Valid {
		return nil
	}
	return &model.Identity{ID: id.UUID, Name: name.String}
}

func metadataArg(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}

func metadataValue(s sql.NullString) json.RawMessage {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.RawMessage(s.String)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

const chatColumns = `message_uuid, server_name, world_name, player_uuid, player_name, message_content,
	message_type, channel, location_x, location_y, location_z, recipient_uuid, recipient_name,
	is_cancelled, metadata_json, logged_at`

func scanChat(row scanner, extra ...any) (model.ChatMessage, error) {
	var (
		m         model.ChatMessage
		loc       nullLocation
		recipient uuid.NullUUID
		rname     sql.NullString
		meta      sql.NullString
		at        dbTime
	)
	dest := []any{&m.ID, &m.Server, &m.World, &m.Player.ID, &m.Player.Name, &m.Content, &m.Type, &m.Channel}
	dest = append(dest, loc.dest()...)
	dest = append(dest, &recipient, &rname, &m.Cancelled, &meta, &at)
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return model.ChatMessage{}, err
	}
	m.Location = loc.value()
	m.Recipient = nullIdentity(recipient, rname)
	m.Metadata = metadataValue(meta)
	m.At = at.Time
	return m, nil
}

const commandColumns = `command_uuid, server_name, source_type, player_uuid, player_name, command_text,
	world_name, location_x, location_y, location_z, is_cancelled, metadata_json, logged_at`

func scanCommand(row scanner) (model.CommandLog, error) {
	var (
		c      model.CommandLog
		player uuid.NullUUID
		pname  sql.NullString
		world  sql.NullString
		loc    nullLocation
		meta   sql.NullString
		at     dbTime
	)
	dest := []any{&c.ID, &c.Server, &c.Source, &player, &pname, &c.Command, &world}
	dest = append(dest, loc.dest()...)
	dest = append(dest, &c.Cancelled, &meta, &at)
	if err := row.Scan(dest...); err != nil {
		return model.CommandLog{}, err
	}
	c.Player = nullIdentity(player, pname)
	c.World = world.String
	c.Location = loc.value()
	c.Metadata = metadataValue(meta)
	c.At = at.Time
	return c, nil
}
