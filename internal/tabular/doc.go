// Package tabular reads the input CSV table and streams the augmented output
// table through a crash-safe temp-file-then-rename writer.
package tabular
