package main

import (
	"fmt"
	"image/color"
	"log"
	"os"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/import1bones/simulator-lc3/pkg/lc3"
	"github.com/import1bones/simulator-lc3/pkg/loader"
)

const (
	consoleCols = 64
	consoleRows = 24
	charWidth   = 8
	charHeight  = 14
)

// Game drives one LC-3 machine and renders its console device. Display
// writes land in a text grid; key presses feed the keyboard registers.
type Game struct {
	vm     *lc3.Machine
	lines  []string
	status string
}

// Write is the machine's display sink: bytes from DDR writes append to the
// console grid with wrap and scroll.
func (g *Game) Write(p []byte) (int, error) {
	for _, b := range p {
		switch b {
		case '\n':
			g.lines = append(g.lines, "")
		case 8: // backspace
			last := len(g.lines) - 1
			if n := len(g.lines[last]); n > 0 {
				g.lines[last] = g.lines[last][:n-1]
			}
		default:
			last := len(g.lines) - 1
			if len(g.lines[last]) >= consoleCols {
				g.lines = append(g.lines, "")
				last++
			}
			g.lines[last] += string(rune(b))
		}
	}
	if len(g.lines) > consoleRows {
		g.lines = g.lines[len(g.lines)-consoleRows:]
	}
	return len(p), nil
}

func (g *Game) Update() error {
	for _, r := range ebiten.AppendInputChars(nil) {
		g.vm.PushKey(uint16(r))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		g.vm.PushKey(10)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.vm.PushKey(8)
	}

	// Run a slice of the program per frame; break early on halt or fault.
	for i := 0; i < 5000; i++ {
		if g.vm.IsHalted() {
			g.status = "halted"
			break
		}
		if err := g.vm.Step(); err != nil {
			g.status = fmt.Sprintf("fault: %v", err)
			break
		}
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	for i, line := range g.lines {
		if line == "" {
			continue
		}
		ebitenutil.DebugPrintAt(screen, line, 4, i*charHeight)
	}

	n, z, p := g.vm.ConditionCodes()
	statusLine := fmt.Sprintf("PC %04X  N=%v Z=%v P=%v  %s", g.vm.PC, n, z, p, g.status)
	text.Draw(screen, statusLine, basicfont.Face7x13,
		4, consoleRows*charHeight+12, color.RGBA{R: 0x80, G: 0xFF, B: 0x80, A: 0xFF})
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return consoleCols * charWidth, consoleRows*charHeight + 20
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <program.obj>\n", os.Args[0])
		os.Exit(1)
	}

	prog, err := loader.ReadFile(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to load object image: %v", err)
	}

	vm := lc3.New()
	vm.InstallTrapHandlers()
	if err := vm.LoadProgram(prog.Words, prog.Origin); err != nil {
		log.Fatalf("Failed to place program: %v", err)
	}

	game := &Game{vm: vm, lines: []string{""}}
	vm.Output = game

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(consoleCols*charWidth, consoleRows*charHeight+20)
	ebiten.SetWindowTitle("LC-3 Console - " + strings.TrimSuffix(os.Args[1], ".obj"))

	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
