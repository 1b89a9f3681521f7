// Package config loads configuration for the gateway and the chat client.
//
// # Gateway (YAML)
//
// The gateway reads YAML from the path in COVEN_CHAT_GATEWAY_CONFIG, or
// $XDG_CONFIG_HOME/coven-chat/gateway.yaml:
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	database:
//	  path: "~/.local/share/coven-chat/chat.db"
//	auth:
//	  jwt_secret: "${COVEN_CHAT_JWT_SECRET}"   # empty disables auth
//	  token_ttl: "720h"
//	agent:
//	  reply_timeout: "90s"
//	  delay: "0s"
//	rate_limit:
//	  requests_per_minute: 30                  # 0 disables
//	  burst: 5
//	dedupe:
//	  ttl: "10m"
//	  max_size: 10000
//	logging:
//	  level: "info"                            # debug, info, warn, error
//	  format: "text"                           # text or json
//
// Durations are strings parsed with time.ParseDuration.
//
// # Client (TOML)
//
// The client reads TOML from COVEN_CHAT_CONFIG, or
// $XDG_CONFIG_HOME/coven-chat/client.toml. A missing file is not an error:
//
//	[gateway]
//	url = "http://127.0.0.1:8080"
//	token_file = "~/.config/coven-chat/token"
//
//	[user]
//	id = "ada"
//
//	[dispatch]
//	response_timeout = "2m"   # "0s" waits forever
//
//	[realtime]
//	reconnect_min = "1s"
//	reconnect_max = "30s"
//
// Unknown keys are rejected so typos do not silently fall back to defaults.
//
// # Environment Variables
//
// Both formats expand ${VAR_NAME} before parsing. Unset variables become
// empty strings.
package config
