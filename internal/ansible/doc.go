// Package ansible implements the binary-module side of the Ansible module
// protocol: the module executable receives the path of a JSON args file as
// its single argument and must print exactly one JSON object on stdout.
//
// Stdout is the protocol channel, so all logging goes to stderr. Args files
// may also be YAML for ad-hoc local runs. Sensitive values (passwords,
// shared secrets) are redacted from any echoed output.
package ansible
