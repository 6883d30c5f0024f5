// Package config manages application settings.
//
// Settings are stored in a JSON file and validated once at load time:
//
//	settings, err := config.Load("config.json")
//	if err != nil {
//	    log.Fatal(err) // bad JSON or an out-of-range value
//	}
//
// A missing file yields defaults. See Settings for the individual
// options and their bounds.
package config
