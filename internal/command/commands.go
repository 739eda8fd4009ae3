package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/Visual-Illusions/NewU/internal/model"
	"github.com/Visual-Illusions/NewU/internal/station"
)

// Permission nodes.
const (
	PermissionSet  = "newu.set"
	PermissionDel  = "newu.del"
	PermissionList = "newu.list"
)

// Stations is the registry surface the commands use.
type Stations interface {
	Add(st *station.Station) error
	Remove(name string) (station.Snapshot, error)
	RemoveNearest(pose model.Pose) (station.Snapshot, error)
	Stations() []station.Snapshot
	Len() int
}

// RegisterAll registers every /newu subcommand.
func RegisterAll(h *Handler, stations Stations, version string) {
	h.Register(&Info{stations: stations, version: version})
	h.Register(&Set{stations: stations})
	h.Register(&Del{stations: stations})
	h.Register(&List{stations: stations})
}

// placed reports whether actor stands somewhere in a world. Console senders don't.
func placed(actor model.Actor) bool {
	return actor.Pose.World != ""
}

// Info handles bare /newu.
type Info struct {
	stations Stations
	version  string
}

func (c *Info) Names() []string    { return []string{""} }
func (c *Info) Permission() string { return "" }

func (c *Info) Handle(_ context.Context, _ model.Actor, _ []string) ([]model.Message, error) {
	return []model.Message{
		model.Info(fmt.Sprintf("NewU %s: respawn at the nearest station you have discovered.", c.version)),
		model.Info(fmt.Sprintf("Stations: %d. Usage: %s", c.stations.Len(), Usage)),
	}, nil
}

// Set handles /newu set [name]: creates a station where the actor stands.
type Set struct {
	stations Stations
}

func (c *Set) Names() []string    { return []string{"set"} }
func (c *Set) Permission() string { return PermissionSet }

func (c *Set) Handle(_ context.Context, actor model.Actor, args []string) ([]model.Message, error) {
	if !placed(actor) {
		return []model.Message{model.Notice("Only players may set up new NewU stations.")}, nil
	}

	var name string
	if len(args) > 1 {
		name = args[1]
	}
	st := station.NewStation(name, actor.Pose)

	err := c.stations.Add(st)
	switch {
	case err == nil:
		return []model.Message{model.Info(fmt.Sprintf("Station %s added @ %s", st.Name(), st.Coordinates()))}, nil
	case errors.Is(err, station.ErrTooClose):
		return []model.Message{model.Notice("Failed to create new station... (Too close to another station?)")}, nil
	case errors.Is(err, station.ErrNameTaken):
		return []model.Message{model.Notice(fmt.Sprintf("A station named %q already exists.", st.Name()))}, nil
	default:
		return nil, err
	}
}

// Del handles /newu del [name]: removes the named station, or the nearest one.
type Del struct {
	stations Stations
}

func (c *Del) Names() []string    { return []string{"del", "delete"} }
func (c *Del) Permission() string { return PermissionDel }

func (c *Del) Handle(_ context.Context, actor model.Actor, args []string) ([]model.Message, error) {
	var (
		snap station.Snapshot
		err  error
	)
	switch {
	case len(args) > 1:
		snap, err = c.stations.Remove(args[1])
	case placed(actor):
		snap, err = c.stations.RemoveNearest(actor.Pose)
	default:
		return []model.Message{model.Notice("Name a station, or stand near one, to delete it.")}, nil
	}

	if errors.Is(err, station.ErrNotFound) {
		return []model.Message{model.Notice("No station found to remove.")}, nil
	}
	if err != nil {
		return nil, err
	}
	return []model.Message{model.Info(fmt.Sprintf("Station %s @ %s removed.", snap.Name, snap.Coordinates()))}, nil
}

// List handles /newu list.
type List struct {
	stations Stations
}

func (c *List) Names() []string    { return []string{"list"} }
func (c *List) Permission() string { return PermissionList }

func (c *List) Handle(_ context.Context, _ model.Actor, _ []string) ([]model.Message, error) {
	all := c.stations.Stations()
	msgs := make([]model.Message, 0, len(all)+1)
	msgs = append(msgs, model.Info(fmt.Sprintf("%d station(s):", len(all))))
	for _, s := range all {
		msgs = append(msgs, model.Info(fmt.Sprintf("%s @ %s/%s %s (%d discoverers)",
			s.Name, s.Placement.World, s.Placement.Dimension, s.Coordinates(), len(s.Discoverers))))
	}
	return msgs, nil
}
