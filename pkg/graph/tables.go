// Package graph holds the edge and node tables produced by the crawler
// plugins and renders them for the terminal.
package graph

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Edge is one follow relation: Source follows Target
type Edge struct {
	Source string `json:"username" yaml:"username" mapstructure:"username"`
	Target string `json:"target_account" yaml:"target_account" mapstructure:"target_account"`
}

// Edges is the edge table
type Edges []Edge

// Handles returns every handle appearing in either column, in first-seen order
func (e Edges) Handles() []string {
	seen := make(map[string]struct{}, len(e)*2)
	handles := make([]string, 0, len(e)*2)
	add := func(h string) {
		if h == "" {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		handles = append(handles, h)
	}
	for _, edge := range e {
		add(edge.Source)
		add(edge.Target)
	}
	return handles
}

// Node carries the public attributes of one account
type Node struct {
	Name           string `json:"name" yaml:"name"`
	DisplayName    string `json:"display_name" yaml:"display_name"`
	BioDescription string `json:"bio_description" yaml:"bio_description"`
	AvatarURL      string `json:"avatar_url" yaml:"avatar_url"`
	IsVerified     bool   `json:"is_verified" yaml:"is_verified"`
	FollowerCount  int64  `json:"follower_count" yaml:"follower_count"`
	FollowingCount int64  `json:"following_count" yaml:"following_count"`
	LikesCount     int64  `json:"likes_count" yaml:"likes_count"`
	VideoCount     int64  `json:"video_count" yaml:"video_count"`
}

// Nodes is the node table
type Nodes []Node

// Names returns the node names in table order
func (n Nodes) Names() []string {
	names := make([]string, len(n))
	for i, node := range n {
		names[i] = node.Name
	}
	return names
}

// RenderEdges writes the edge table to w
func RenderEdges(w io.Writer, edges Edges) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Username", "Target Account"})
	for _, e := range edges {
		t.AppendRow(table.Row{e.Source, e.Target})
	}
	t.AppendFooter(table.Row{"Edges", strconv.Itoa(len(edges))})
	t.Render()
}

// RenderNodes writes the node table to w
func RenderNodes(w io.Writer, nodes Nodes) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Display Name", "Verified", "Followers", "Following", "Likes", "Videos"})
	for _, n := range nodes {
		verified := ""
		if n.IsVerified {
			verified = "yes"
		}
		t.AppendRow(table.Row{n.Name, n.DisplayName, verified, n.FollowerCount, n.FollowingCount, n.LikesCount, n.VideoCount})
	}
	t.Render()
}

var (
	edgeColumns = []string{"username", "target_account"}
	nodeColumns = []string{
		"name", "display_name", "bio_description", "avatar_url", "is_verified",
		"follower_count", "following_count", "likes_count", "video_count",
	}
)

// WriteEdgesCSV writes the edge table as CSV with the column names of the
// JSON encoding
func WriteEdgesCSV(w io.Writer, edges Edges) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(edgeColumns); err != nil {
		return err
	}
	for _, e := range edges {
		if err := cw.Write([]string{e.Source, e.Target}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNodesCSV writes the node table as CSV
func WriteNodesCSV(w io.Writer, nodes Nodes) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(nodeColumns); err != nil {
		return err
	}
	for _, n := range nodes {
		record := []string{
			n.Name, n.DisplayName, n.BioDescription, n.AvatarURL,
			strconv.FormatBool(n.IsVerified),
			strconv.FormatInt(n.FollowerCount, 10),
			strconv.FormatInt(n.FollowingCount, 10),
			strconv.FormatInt(n.LikesCount, 10),
			strconv.FormatInt(n.VideoCount, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
