// Command evaltest is a softcode REPL against a throwaway in-memory
// world, for trying expressions without running a server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/kochj23/webmush/pkg/eval"
	"github.com/kochj23/webmush/pkg/eval/functions"
	"github.com/kochj23/webmush/pkg/gamedb"
)

func main() {
	showSteps := flag.Bool("steps", false, "print invocation count after each evaluation")
	flag.Parse()

	db := gamedb.NewDatabase()
	room, _ := db.Create(gamedb.KindRoom, "Workshop", gamedb.Nothing, gamedb.Nothing)
	player, _ := db.Create(gamedb.KindPlayer, "Tester", gamedb.Nothing, room)
	db.SetFlag(player, gamedb.FlagWizard, true)

	funcs := eval.NewRegistry()
	functions.RegisterAll(funcs)

	fmt.Printf("evaltest: %d functions registered. You are %s(#%d).\n",
		funcs.Len(), db.Name(player), player)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "quit" || line == "exit" {
			break
		}
		ctx := eval.NewContext(db, funcs, player, player)
		out := ctx.Eval(line)
		fmt.Println(out)
		if *showSteps {
			fmt.Printf("  [%d invocations]\n", ctx.Steps())
		}
	}
}
