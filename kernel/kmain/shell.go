package kmain

import (
	"antiglory/kernel/clock"
	"antiglory/kernel/kfmt"
)

// command is a shell built-in.
type command struct {
	name string
	help string
	run  func(sys *System)
}

var commands []command

func init() {
	commands = []command{
		{"ping", "reply with pong", func(*System) { kfmt.Printf("pong\n") }},
		{"halt", "halt the CPU", func(*System) { cpuHaltFn() }},
		{"mem", "print allocator statistics", func(sys *System) { sys.Allocator.Dump(kfmt.GetOutputSink()) }},
		{"ps", "print the run queue", func(sys *System) { sys.Scheduler.Dump(kfmt.GetOutputSink()) }},
		{"uptime", "print the number of timer ticks since boot", printUptime},
		{"help", "list the available commands", printHelp},
	}
}

// shell is the default main thread. It reads commands from the line
// discipline until the CPU is halted.
func (sys *System) shell(_ interface{}) {
	kfmt.Printf("\nv0 is alive!\n")

	for {
		kfmt.Printf("> ")
		sys.exec(sys.Input.ReadLine())
	}
}

func (sys *System) exec(line string) {
	if line == "" {
		return
	}

	for _, cmd := range commands {
		if cmd.name == line {
			cmd.run(sys)
			return
		}
	}

	kfmt.Printf("%s: command not found\n", line)
}

func printUptime(sys *System) {
	ticks := sys.Clock.Ticks()
	kfmt.Printf("up %d ticks (%ds), %d context switches\n", ticks, ticks/clock.TickRate, sys.Scheduler.Switches())
}

func printHelp(*System) {
	for _, cmd := range commands {
		kfmt.Printf("%8s  %s\n", cmd.name, cmd.help)
	}
}
