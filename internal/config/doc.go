// Package config manages the global labcmdr configuration stored in YAML at
// ~/.config/labcmdr/config.yaml.
//
// Every setting has a built-in default declared as a struct tag. The user
// file only needs the keys it changes; it is merged over the defaults key by
// key, so nested sections keep their other defaults.
//
// # Configuration Structure
//
//	paths:
//	  labs_root: ~/Labs
//	network:
//	  interface: tun0
//	  fallback_interfaces: [tun1, eth0]
//	  auto_detect: false
//	server:
//	  default_port: 8080
//	  auto_increment_port: true
//	  serve_path: server/serve
//	  loot_path: server/loot
//	behavior:
//	  file_overwrite: prompt   # prompt | all | none
//	applications:
//	  editor: nano
//
// # Path Expansion
//
// After merging, string values are expanded ($VAR, ~, absolute resolution)
// when their key ends in _root, _dir, _directory or _file, or when the value
// contains $ or ~.
//
// # Usage
//
//	g := config.Load()
//	if g.ParseErr != nil {
//	    output.Warn("Ignoring config file: %v", g.ParseErr)
//	}
//	port := g.Server.DefaultPort
//	iface := g.Value("network.interface", "tun0", labCfg.Document())
//
// A broken or missing user file never stops the tool; Load falls back to the
// defaults and reports the problem through ParseErr.
//
// # Thread Safety
//
// Global is read-only after Load and safe to share. The file helpers (Init,
// Reset, SetValue) are meant for single CLI invocations.
package config
