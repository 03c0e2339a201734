// Package testsupport provides fixtures shared by package tests: sized and
// text files, throwaway project workspaces with layer files, and stub
// binaries placed on PATH.
package testsupport
