// Package dialogue turns a raw time-aligned transcript into a structured,
// role-labeled conversation. Attribution assigns a speaker role to every
// transcript segment using turn-taking and lexical heuristics; the builder
// then merges consecutive same-role segments into utterances.
package dialogue
