package optimizer

// BuildArgs returns the svgo argument list for one stdin-to-stdout run
// using the config module at configPath. The binary itself is not included.
//
// svgo reads the document from "-i -" and writes it to "-o -"; --quiet keeps
// stdout limited to the optimized document.
func BuildArgs(configPath string) []string {
	return []string{
		"--config", configPath,
		"--quiet",
		"--input", "-",
		"--output", "-",
	}
}
