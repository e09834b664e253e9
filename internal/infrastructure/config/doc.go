// Package config loads and validates the accessor host configuration.
//
// Values are layered in this order:
//  1. defaults from defaultConfig
//  2. the YAML file (configs/config.yaml unless ACCESSORHOST_CONFIG is set)
//  3. ACCESSORHOST_* environment variables
//
// Secrets (broker password, InfluxDB token, Redis password) belong in the
// environment rather than the file.
//
// The accessors list seeds the instance registry on first start:
//
//	accessors:
//	  - id: hall-bulb
//	    kind: hue
//	    params:
//	      bridge_url: http://192.168.1.20
//	      username: newdeveloper
//	      bulb_name: Hall
//
// Each adapter validates its own params when the instance is set up.
package config
