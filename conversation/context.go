package conversation

import "strings"

const (
	userPrefix = "User: "
	botPrefix  = "Bot: "
)

type exchange struct {
	input    string
	response string
	answered bool
}

// Context is the accumulating text fed to the dialogue model. The first
// exchange's input carries the persona prompt; later exchanges carry only
// what the user typed.
type Context struct {
	exchanges []exchange
}

// NewContext seeds a context as personaPrompt + "\nUser: " + firstUserText.
func NewContext(personaPrompt, firstUserText string) *Context {
	return &Context{
		exchanges: []exchange{{input: personaPrompt + "\n" + userPrefix + firstUserText}},
	}
}

// Seed returns the persona-seeded first input.
func (c *Context) Seed() string {
	return c.exchanges[0].input
}

func (c *Context) AddUserInput(text string) {
	c.exchanges = append(c.exchanges, exchange{input: text})
}

// AddResponse records the model's reply to the most recent user input.
func (c *Context) AddResponse(text string) {
	last := &c.exchanges[len(c.exchanges)-1]
	last.response = text
	last.answered = true
}

// Turns is the number of user inputs recorded, the seed included.
func (c *Context) Turns() int {
	return len(c.exchanges)
}

// Responses returns the recorded model replies in order.
func (c *Context) Responses() []string {
	out := make([]string, 0, len(c.exchanges))
	for _, e := range c.exchanges {
		if e.answered {
			out = append(out, e.response)
		}
	}
	return out
}

func (c *Context) String() string {
	return c.Render(0)
}

// Render returns the transcript handed to the model. A positive maxTurns keeps
// the seed plus only the most recent maxTurns follow-up exchanges.
func (c *Context) Render(maxTurns int) string {
	lines := []string{c.exchanges[0].input}

	first := 1
	if maxTurns > 0 && len(c.exchanges)-1 > maxTurns {
		first = len(c.exchanges) - maxTurns
	}
	if first == 1 && c.exchanges[0].answered {
		lines = append(lines, botPrefix+c.exchanges[0].response)
	}

	for _, e := range c.exchanges[first:] {
		lines = append(lines, userPrefix+e.input)
		if e.answered {
			lines = append(lines, botPrefix+e.response)
		}
	}
	return strings.Join(lines, "\n")
}
