package ghci

// Sentinel is the byte sequence the REPL is configured to emit, via its
// prompt-template facility, at the end of every command's output. It must
// be improbable in ordinary program output, and the same literal value is
// used both to configure the REPL's prompt (stdin writer, at startup) and
// to recognize it (stdout reader's anchor search) — never compute one
// independently of the other.
const Sentinel = "\x02ghcisup-prompt-7f3a\x03"

// setPromptCommand is sent once at startup to make the REPL emit Sentinel
// after every subsequent command, with an empty continuation prompt so
// multi-line input doesn't interleave a second, unrecognized prompt.
const setPromptCommand = ":set prompt \"" + Sentinel + "\\n\"\n:set prompt-cont \"\"\n"
