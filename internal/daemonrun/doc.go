// Package daemonrun wires the drop pipeline together and runs it until
// shutdown. The foreground command and the daemon child share it.
package daemonrun
