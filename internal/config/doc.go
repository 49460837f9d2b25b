// Package config provides configuration structures and utilities for signalscan.
// It defines the options for the browser session, login handling, page
// fetching, pagination and output, together with the YAML file loader that
// lets operators keep those options in a .signalscan file.
package config
