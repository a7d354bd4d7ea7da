// Package secret resolves credential references in configuration values,
// keeping store passwords and tokens out of config files.
//
// Plain values pass through strict environment expansion (see
// ExpandEnvStrict). Values carrying the prefix "secretref:" resolve
// through a registered Provider:
//
//   - Full value:  secretref:env:VALKEY_PASSWORD
//   - Inline use:  user:secretref:env:VALKEY_PASSWORD
package secret
