// Package cmd holds the cobra command tree of the receipts-intake CLI. Each
// subcommand has a NewXxxCmd constructor; NewRootCmd wires them together.
package cmd
