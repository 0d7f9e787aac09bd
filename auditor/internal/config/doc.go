// Package config loads and watches the auditor configuration.
//
// Sources, in order of precedence (highest first):
//   - process environment
//   - a .env file (LoadDotenv), unless AUDITOR_SKIP_DOTENV is set
//   - the optional YAML file passed to Load
//   - built-in defaults
//
// Secrets are never written to YAML. The file names the environment
// variables that hold them (pagespeed.key_env, registry.uri_env,
// registry.dbname_env) and the accessors Key(), URI() and DBName() resolve
// them at call time, so a hot reload also picks up a rotated key.
//
// Watch(ctx, path, onChange) uses fsnotify to re-read the file in serve mode
// and re-adds the watch after a rename so atomic saves keep working.
package config
