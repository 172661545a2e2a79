// Package message renders player-facing text from message keys.
package message

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/sandertv/gophertunnel/minecraft/text"
)

const DefaultPrefix = "<dark-grey>[<gold>BlockParty</gold>]</dark-grey> "

// Defaults holds the built-in template of every key the plugin sends.
// Templates use gophertunnel colour tags and {name} placeholders.
var Defaults = map[string]string{
	"timer.started":             "<green>Your mining session has started! You have <yellow>{time}</yellow> to mine.</green>",
	"timer.warning":             "<yellow>Your mining session ends in <red>{time}</red>!</yellow>",
	"timer.action-bar-enhanced": "<gold>Mining time left: <yellow>{time}</yellow></gold>",
	"timer.ended":               "<red>Your mining session has ended.</red>",
	"timer.ended-item-removed":  "<red>Your mining session has ended and your access item was used up.</red>",
	"title.session-started":     "<gold>BlockParty</gold>",
	"title.session-started-sub": "<yellow>Mine for {time}!</yellow>",
	"combo.increment":           "<aqua>Combo x{combo}</aqua>",
	"combo.milestone":           "<gold>Combo x{combo}! Reward multiplier: <yellow>{multiplier}</yellow></gold>",
	"combo.warning":             "<yellow>Combo ending in {time}s...</yellow>",
	"combo.expired":             "<grey>Your combo of {combo} has expired.</grey>",
	"access.granted":            "<green>Access granted. Happy mining!</green>",
	"access.already-active":     "<yellow>You already have an active mining session.</yellow>",
	"access.denied":             "<red>You cannot use BlockParty here.</red>",
	"access.cannot-drop":        "<red>You cannot drop your access item during a session.</red>",
	"access.cannot-transfer":    "<red>You cannot move your access item into other inventories.</red>",
	"mining.no-active-session":  "<red>You need an active mining session to mine this block.</red>",
	"mining.block-regenerate":   "<grey>This block will regenerate soon.</grey>",
	"reward.received":           "<green>You found <yellow>{reward}</yellow>!</green>",
	"reward.key-message":        "<gold>{message}</gold>",
}

// Catalog is an immutable set of templates.
type Catalog struct {
	log      *slog.Logger
	prefix   string
	messages map[string]string
}

// NewCatalog layers overrides on top of Defaults. An empty prefix keeps the
// default one; use " " to disable it.
func NewCatalog(log *slog.Logger, prefix string, overrides map[string]string) *Catalog {
	if log == nil {
		log = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	messages := maps.Clone(Defaults)
	for k, v := range overrides {
		messages[k] = v
	}
	return &Catalog{log: log.With("component", "messages"), prefix: strings.TrimLeft(prefix, " "), messages: messages}
}

// Chat renders key with the prefix, for chat messages.
func (c *Catalog) Chat(key string, placeholders map[string]string) string {
	return colour(c.prefix + c.template(key, placeholders))
}

// Plain renders key without the prefix, for titles and the action bar.
func (c *Catalog) Plain(key string, placeholders map[string]string) string {
	return colour(c.template(key, placeholders))
}

func (c *Catalog) template(key string, placeholders map[string]string) string {
	tmpl, ok := c.messages[key]
	if !ok {
		c.log.Debug("missing message", "key", key)
		return "<red>Missing message: " + key + "</red>"
	}
	return Format(tmpl, placeholders)
}

// Format replaces every {name} in tmpl with its placeholder value. Unknown
// placeholders are left as they are.
func Format(tmpl string, placeholders map[string]string) string {
	if len(placeholders) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(placeholders)*2)
	for k, v := range placeholders {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func colour(s string) string {
	return text.Colourf("%s", s)
}
