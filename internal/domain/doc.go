// Package domain defines core data models, error categories and small
// interfaces shared across the key exchange packages.
// It contains plain types and contracts only.
package domain
