// Package template lays out a new lab directory.
//
// A lab is a fixed skeleton of directories and empty note files plus a few
// notes rendered from templates embedded in the binary:
//
//	notes/      enumeration, escalation, general_notes, initial_access,
//	            walkthrough, reminders and checklist
//	server/serve/{exploits,tools,payloads}
//	server/loot/{creds,interesting_files,hashes,screenshots}
//	labcmdr/    lab config and file server log
//	scans/nmap/
//
// # Overwrite policy
//
// Re-running create over an existing lab never clobbers notes silently.
// Every existing file is checked against an Overwriter whose policy comes from
// behavior.file_overwrite:
//
//	prompt  ask per file: [y]es, [n]o, [a]ll remaining, [s]kip remaining
//	all     overwrite everything
//	none    keep every existing file
//
// # Rendering
//
// Templates receive Data and have access to these functions:
//   - upper: strings.ToUpper
//   - default: returns the fallback when the value is empty
package template
