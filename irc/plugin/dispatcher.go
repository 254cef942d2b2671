package plugin

import (
	"github.com/nero-services/nero/irc/logger"
)

// registration ties one plugin's hook handler to the plugin instance
// it belongs to, so FireHook can invoke the handler with the right
// receiver (spec §4.6's "a hook belongs to exactly one plugin").
type registration struct {
	owner   Handle
	plugin  Plugin
	hook    HookType
	handler HookFunc
}

// Dispatcher owns the set of loaded plugins and their registered
// hooks, and fires matching hooks as protocol events occur.
type Dispatcher struct {
	log     *logger.Manager
	plugins []*LoadedPlugin
	hooks   []registration
	bots    []Bot
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(log *logger.Manager) *Dispatcher {
	return &Dispatcher{log: log}
}

// Load opens the plugin at path, registers its hooks and bots, and
// keeps it resident for the lifetime of the process.
func (d *Dispatcher) Load(path string) error {
	loaded, err := LoadPlugin(path)
	if err != nil {
		d.log.Error("plugin", "failed to load %s: %v", path, err)
		return err
	}

	for _, ev := range loaded.Plugin.RegisterHooks() {
		d.hooks = append(d.hooks, registration{
			owner:   loaded.Handle,
			plugin:  loaded.Plugin,
			hook:    ev.Type,
			handler: ev.Func,
		})
		d.log.Debug("plugin", "registered hook %s for %s", ev.Type, loaded.Plugin.Name())
	}

	d.bots = append(d.bots, loaded.Plugin.RegisterBots()...)
	d.plugins = append(d.plugins, loaded)
	d.log.Info("plugin", "loaded %s (%s)", loaded.Plugin.Name(), loaded.Plugin.Description())

	return nil
}

// Bots returns every bot registered by every loaded plugin, for the
// engine to introduce at burst time.
func (d *Dispatcher) Bots() []Bot {
	return d.bots
}

// Register adds a hook handler directly, without going through a loaded
// shared object. Tests use this to exercise FireHook against a stub
// Plugin.
func (d *Dispatcher) Register(owner Handle, p Plugin, hookType HookType, fn HookFunc) {
	d.hooks = append(d.hooks, registration{owner: owner, plugin: p, hook: hookType, handler: fn})
}

// FireHook invokes every registered handler for data.Type, in
// registration order, using api to let the handler act back on the
// network. Handler errors are logged and do not stop the remaining
// handlers from running (spec §4.6: a misbehaving plugin must not be
// able to wedge the daemon).
func (d *Dispatcher) FireHook(api API, data *HookData) {
	for _, reg := range d.hooks {
		if reg.hook != data.Type {
			continue
		}

		lines, err := reg.handler(api, reg.plugin, data)
		if err != nil {
			d.log.Error("plugin", "hook %s on %s failed: %v", data.Type, reg.plugin.Name(), err)
			continue
		}

		for _, line := range lines {
			api.Enqueue(line)
		}
	}
}
