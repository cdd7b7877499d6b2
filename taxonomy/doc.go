// Package taxonomy seeds and maintains the THEME -> CONCEPT -> ASPECT
// vocabulary used to tag questions, and bootstraps tags from the legacy
// mid/sub categories carried by imported questions.
package taxonomy
