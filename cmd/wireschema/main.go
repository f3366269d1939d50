// Wireschema — prints the JSON Schema of the wire packet envelope.
//
// Useful for keeping non-Go clients (or protocol docs) in lockstep with the
// packet format without hand-maintaining a schema.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/1ureka/factorysync/internal/protocol"
)

func main() {
	schema := jsonschema.Reflect(&protocol.Packet{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
