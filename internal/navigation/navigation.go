// Package navigation turns "open this item" into an instruction the host
// web app can execute, picking the entry point the browser reports.
package navigation

import "net/url"

// Capabilities lists the host app entry points a browser reported.
type Capabilities struct {
	AppRouter        bool   `json:"app_router"`         // window.appRouter.showItem
	Dashboard        bool   `json:"dashboard"`          // window.Dashboard.navigate
	Page             bool   `json:"page"`               // window.page
	Require          bool   `json:"require"`            // require(['appRouter'])
	PlaybackManager  bool   `json:"playback_manager"`   // playbackManager.play
	ReportedServerID string `json:"server_id,omitempty"` // the api client's server id
}

// Action is what the user asked for.
type Action string

// Actions.
const (
	ActionShow Action = "show"
	ActionPlay Action = "play"
)

// Directive is a typed instruction the browser executes.
type Directive struct {
	Navigator string `json:"navigator"`
	Action    Action `json:"action"`
	// Call is the host function to invoke, with ItemID and ServerID as
	// arguments when Path is empty.
	Call     string `json:"call"`
	Path     string `json:"path,omitempty"`
	ItemID   string `json:"item_id"`
	ServerID string `json:"server_id,omitempty"`
	// Reload asks the browser to reload when the hash change did not
	// navigate.
	Reload bool `json:"reload,omitempty"`
}

// Navigator builds directives for one host entry point.
type Navigator interface {
	Name() string
	NavigateToItem(itemID, serverID string) Directive
	PlayItem(itemID, serverID string) Directive
}

// Select returns the first navigator the browser supports, in the order
// appRouter, Dashboard, page, require, hash.
func Select(caps Capabilities) Navigator {
	var n Navigator
	switch {
	case caps.AppRouter:
		n = appRouter{}
	case caps.Dashboard:
		n = pathNavigator{name: "dashboard", call: "Dashboard.navigate", prefix: "item"}
	case caps.Page:
		n = pathNavigator{name: "page", call: "page", prefix: "/item"}
	case caps.Require:
		n = requireRouter{}
	default:
		n = hashNavigator{}
	}
	if caps.PlaybackManager {
		return withPlayback{Navigator: n}
	}
	return n
}

// ResolveServerID picks the first non-empty id: the item's own, the one the
// browser reported, the configured one.
func ResolveServerID(itemServerID, reported, configured string) string {
	for _, id := range []string{itemServerID, reported, configured} {
		if id != "" {
			return id
		}
	}
	return ""
}

// itemQuery renders "item?id=...&serverId=..." style query strings.
func itemQuery(prefix, itemID, serverID string) string {
	q := url.Values{"id": {itemID}}
	if serverID != "" {
		q.Set("serverId", serverID)
	}
	return prefix + "?" + q.Encode()
}

type appRouter struct{}

func (appRouter) Name() string { return "app_router" }

func (appRouter) NavigateToItem(itemID, serverID string) Directive {
	return Directive{Navigator: "app_router", Action: ActionShow, Call: "appRouter.showItem", ItemID: itemID, ServerID: serverID}
}

// PlayItem opens the detail page; the host app has no direct play entry
// without the playback manager.
func (a appRouter) PlayItem(itemID, serverID string) Directive {
	d := a.NavigateToItem(itemID, serverID)
	d.Action = ActionPlay
	return d
}

type requireRouter struct{}

func (requireRouter) Name() string { return "require" }

func (requireRouter) NavigateToItem(itemID, serverID string) Directive {
	return Directive{
		Navigator: "require",
		Action:    ActionShow,
		Call:      "require(appRouter).showItem",
		// appRouter.show is the fallback when the module lacks showItem.
		Path:     itemQuery("item", itemID, serverID),
		ItemID:   itemID,
		ServerID: serverID,
	}
}

func (r requireRouter) PlayItem(itemID, serverID string) Directive {
	d := r.NavigateToItem(itemID, serverID)
	d.Action = ActionPlay
	return d
}

type pathNavigator struct {
	name   string
	call   string
	prefix string
}

func (p pathNavigator) Name() string { return p.name }

func (p pathNavigator) NavigateToItem(itemID, serverID string) Directive {
	return Directive{
		Navigator: p.name,
		Action:    ActionShow,
		Call:      p.call,
		Path:      itemQuery(p.prefix, itemID, serverID),
		ItemID:    itemID,
		ServerID:  serverID,
	}
}

func (p pathNavigator) PlayItem(itemID, serverID string) Directive {
	d := p.NavigateToItem(itemID, serverID)
	d.Action = ActionPlay
	return d
}

type hashNavigator struct{}

func (hashNavigator) Name() string { return "hash" }

func (hashNavigator) NavigateToItem(itemID, serverID string) Directive {
	return Directive{
		Navigator: "hash",
		Action:    ActionShow,
		Call:      "location.hash",
		Path:      itemQuery("#!/item", itemID, serverID),
		ItemID:    itemID,
		ServerID:  serverID,
		Reload:    true,
	}
}

func (h hashNavigator) PlayItem(itemID, serverID string) Directive {
	d := h.NavigateToItem(itemID, serverID)
	d.Action = ActionPlay
	return d
}

// withPlayback starts playback directly when the playback manager exists.
type withPlayback struct {
	Navigator
}

func (w withPlayback) PlayItem(itemID, serverID string) Directive {
	return Directive{
		Navigator: w.Name(),
		Action:    ActionPlay,
		Call:      "playbackManager.play",
		ItemID:    itemID,
		ServerID:  serverID,
	}
}
