// Package view turns state snapshots into the list and selector shapes the
// client renders. Everything here is a pure projection; nothing mutates
// state, and every render fully replaces the previous one.
package view

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"blockforge/api/internal/store"
)

// DocumentItem is one row of the document sidebar.
type DocumentItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	ClientID   *string   `json:"clientId"`
	ClientName string    `json:"clientName,omitempty"`
	BlockCount int       `json:"blockCount"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Active     bool      `json:"active"`
}

// DocumentList projects documents sorted by UpdatedAt descending. A ClientID
// that no longer resolves renders as no client, never as an error.
func DocumentList(docs []store.Document, clients []store.Client, activeID string) []DocumentItem {
	byID := make(map[string]store.Client, len(clients))
	for _, c := range clients {
		byID[c.ID] = c
	}

	items := make([]DocumentItem, 0, len(docs))
	for _, doc := range docs {
		item := DocumentItem{
			ID:         doc.ID,
			Title:      doc.Title,
			ClientID:   doc.ClientID,
			BlockCount: len(doc.Blocks),
			UpdatedAt:  doc.UpdatedAt,
			Active:     doc.ID == activeID,
		}
		if doc.ClientID != nil {
			if client, ok := byID[*doc.ClientID]; ok {
				item.ClientName = client.DisplayName()
			}
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items
}

// FilterDocuments keeps rows whose title or client name contains the query,
// case-insensitively. An empty query keeps everything.
func FilterDocuments(items []DocumentItem, query string) []DocumentItem {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}
	out := []DocumentItem{}
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), query) ||
			strings.Contains(strings.ToLower(item.ClientName), query) {
			out = append(out, item)
		}
	}
	return out
}

// ClientItem is one row of the client sidebar.
type ClientItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	City          string    `json:"city,omitempty"`
	HasAssessment bool      `json:"hasAssessment"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ClientList projects clients sorted by display name.
func ClientList(clients []store.Client) []ClientItem {
	items := make([]ClientItem, 0, len(clients))
	for _, c := range clients {
		items = append(items, ClientItem{
			ID:            c.ID,
			Name:          c.DisplayName(),
			Email:         c.Email,
			City:          c.City,
			HasAssessment: c.RiskAssessment != nil,
			UpdatedAt:     c.UpdatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items
}

// Option is one entry of the client selector.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ClientOptions projects the client-selector options, sorted by label.
func ClientOptions(clients []store.Client) []Option {
	opts := make([]Option, 0, len(clients))
	for _, c := range clients {
		opts = append(opts, Option{Value: c.ID, Label: c.DisplayName()})
	}
	sort.Slice(opts, func(i, j int) bool {
		return strings.ToLower(opts[i].Label) < strings.ToLower(opts[j].Label)
	})
	return opts
}

// TemplateItem is one row of the document-template list.
type TemplateItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	BlockCount int       `json:"blockCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TemplateList projects templates, newest first.
func TemplateList(templates []store.Template) []TemplateItem {
	items := make([]TemplateItem, 0, len(templates))
	for _, t := range templates {
		items = append(items, TemplateItem{
			ID:         t.ID,
			Name:       t.Name,
			BlockCount: len(t.Blocks),
			CreatedAt:  t.CreatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items
}

// PaletteBlock is one insertable template in the authoring palette.
type PaletteBlock struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PaletteGroup is one group of the authoring palette. Deletable is false
// for the built-in default group.
type PaletteGroup struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Deletable bool           `json:"deletable"`
	Blocks    []PaletteBlock `json:"blocks"`
}

// GroupPalette projects block groups in creation order, the default group
// first. Templates within a group sort by name.
func GroupPalette(groups map[string]store.BlockGroup) []PaletteGroup {
	items := make([]PaletteGroup, 0, len(groups))
	for id, g := range groups {
		blocks := make([]PaletteBlock, 0, len(g.Blocks))
		for bid, b := range g.Blocks {
			blocks = append(blocks, PaletteBlock{ID: bid, Name: b.Name})
		}
		sort.Slice(blocks, func(i, j int) bool {
			return strings.ToLower(blocks[i].Name) < strings.ToLower(blocks[j].Name)
		})
		items = append(items, PaletteGroup{
			ID:        id,
			Name:      g.Name,
			Deletable: id != store.DefaultGroupID,
			Blocks:    blocks,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return groupOrdinal(items[i].ID) < groupOrdinal(items[j].ID)
	})
	return items
}

func groupOrdinal(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "group-"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}
