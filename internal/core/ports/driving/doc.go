// Package driving declares what the CLI and the MCP server may ask of coachkb:
// building chunks files, ingesting them, retrieving passages and managing
// settings. internal/core/services implements every interface here.
package driving
