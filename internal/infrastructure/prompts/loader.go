package prompts

import (
	_ "embed"
)

//go:embed greeting.txt
var GreetingPrompt string
