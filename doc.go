// Package bindgen generates Jakt extern declarations from C++ headers
// written against SerenityOS AK and LibCore.
//
// # Pipeline
//
// For every input header the Engine runs four stages:
//
//  1. Parse: the tree-sitter C++ frontend reads the header and the headers
//     it includes into one declaration unit with resolved names.
//
//  2. Collect: classes, structs and enums declared in the header directly
//     inside a target namespace are admitted, together with their bindable
//     methods. Types from other headers that the bindings mention become
//     imports, and their headers are scheduled.
//
//  3. Emit: the admitted declarations are rendered as an
//     `import extern "<header>" { ... }` block, with AK wrapper types such as
//     ErrorOr, NonnullRefPtr, Optional and Vector translated to their Jakt
//     spellings.
//
//  4. Write: the text goes to <output_dir>/<lower-case name>.jakt.
//
// Scheduled headers are processed in a following batch, until no new header
// is scheduled. Each header is processed at most once per run.
//
// # Usage
//
//	v, err := config.NewViper("", "")
//	cfg, err := config.Load(v)
//
//	e, err := bindgen.New(cfg, bindgen.WithLogger(log))
//	if err != nil { ... }
//	defer e.Close()
//
//	status, err := e.Run(ctx, []string{"Userland/Libraries/LibGUI/Button.h"})
//
// # Errors
//
// Declarations that cannot be expressed at all, like unmapped builtin types or
// virtual bases in strict mode, abort the run with an error classified by
// diag.IsFatal. Problems confined to one file, like a header that cannot be
// read or an output file that cannot be written, fail that file and make
// Run return status 1. Everything else is a warning on the logger.
//
// # Incremental runs
//
// With a manifest database configured, a header whose inputs, configuration
// and output are unchanged since the last run is not regenerated. Its
// recorded dependencies are still scheduled, so the set of processed files
// matches a full run.
package bindgen
