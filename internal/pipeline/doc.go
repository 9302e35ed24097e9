// Package pipeline lists the target directory, selects SVG files and
// rewrites each one in place with the configured optimizer.
//
// Run performs one batch, Watch keeps re-optimizing changed files, and
// Analyze reports the savings a run would produce without writing.
package pipeline
