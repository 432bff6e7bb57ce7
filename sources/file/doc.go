// Package file reads pipeline input from text files line by line and
// writes pipeline output as lines.
package file
