// install-assistant is the operator tooling for unattended
// installations: answer file validation, install media preparation and
// device inspection.
package main

import "autoinst/assistant/cmd"

func main() {
	cmd.Execute()
}
