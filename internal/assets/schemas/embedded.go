// Package schemasassets provides embedded JSON schemas so validation works in
// installed binaries regardless of the working directory.
package schemasassets

import _ "embed"

// WalkManifestSchema is the embedded walk job manifest JSON schema.
//
//go:embed walk-manifest.schema.json
var WalkManifestSchema []byte
