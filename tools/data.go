// Package tools provides the read-only data collaborators of the chatbot:
// purchase history, product catalog, and the refund policy with its
// deterministic validator, fee calculator, and (simulated) processor.
package tools

import "embed"

// The fixture data ships inside the binary; the reference system reads the
// same three files from a data/ directory at runtime.
//
//go:embed data/purchase_history.json data/catalog.json data/refund_policy.txt
var dataFS embed.FS

// DateLayout is the wire format of every date in the fixture data.
const DateLayout = "2006-01-02"
