// Command openbuckets watches drop directories and prints a context report
// for every file that lands in them.
//
// Usage:
//
//	openbuckets [--watch DIR]... [DIR...] [--daemon] [--base DIR]
//	openbuckets stop
//	openbuckets status [DIR...]
//	openbuckets config init [--global] [--ext EXT] [--force]
//	openbuckets config show FILE
//
// Reports go to stdout and logs to stderr. With --daemon the process detaches
// and both streams are appended to open-buckets.log in the working directory.
package main
