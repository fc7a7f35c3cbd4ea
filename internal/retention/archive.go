package retention

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/model"
)

// Archived is one line of an archive file.
type Archived struct {
	Kind    model.EntryKind    `json:"kind"`
	Chat    *model.ChatMessage `json:"chat,omitempty"`
	Command *model.CommandLog  `json:"command,omitempty"`
}

// Archive describes a written archive file.
type Archive struct {
	Path      string    `json:"path"`
	Chat      int64     `json:"chat_messages"`
	Commands  int64     `json:"command_logs"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

func archiveName(server string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s.jsonl.gz", server, now.UTC().Format("20060102-150405"), uuid.New().String()[:8])
}

// writeArchive exports every record older than cutoff as gzip-compressed
// JSON lines. A failed export leaves no file behind.
func writeArchive(ctx context.Context, src Store, dir, server string, cutoff, now time.Time) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	path := filepath.Join(dir, archiveName(server, now))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}

	a := &Archive{Path: path, CreatedAt: now.UTC()}
	if err := export(ctx, src, file, cutoff, a); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close archive: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	a.SizeBytes = info.Size()
	return a, nil
}

func export(ctx context.Context, src Store, w io.Writer, cutoff time.Time, a *Archive) error {
	gw := gzip.NewWriter(w)
	bw := bufio.NewWriter(gw)
	enc := json.NewEncoder(bw)

	err := src.ForEachChatBefore(ctx, cutoff, func(m model.ChatMessage) error {
		a.Chat++
		return enc.Encode(Archived{Kind: model.EntryChat, Chat: &m})
	})
	if err != nil {
		return fmt.Errorf("archive chat: %w", err)
	}
	err = src.ForEachCommandBefore(ctx, cutoff, func(c model.CommandLog) error {
		a.Commands++
		return enc.Encode(Archived{Kind: model.EntryCommand, Command: &c})
	})
	if err != nil {
		return fmt.Errorf("archive commands: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	return gw.Close()
}

// ReadArchive calls fn for every line of an archive file.
func ReadArchive(path string, fn func(Archived) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	gr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer gr.Close()

	dec := json.NewDecoder(gr)
	for {
		var line Archived
		if err := dec.Decode(&line); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}
