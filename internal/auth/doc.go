// Package auth issues and verifies the bearer tokens that guard the hub's
// control API.
//
// Tokens are HS256 JWTs carrying a subject and a role. Roles map to a
// static permission set:
//
//	viewer   read entries, coordinators, states and history
//	operator viewer + request refreshes
//	admin    operator + reboot devices and unload entries
//
// Tokens are minted offline with the graylogic-hub token command; the hub
// keeps no account database.
package auth
