// Plan Takeoff: interactive measurement and annotation over construction
// drawing sheets.
package main

import (
	"log"
	"os"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"

	"plan-takeoff/internal/app"
	"plan-takeoff/internal/store"
	"plan-takeoff/internal/version"
	"plan-takeoff/ui/mainwindow"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("plan-takeoff %s (%s, built %s)", version.Version, version.GitCommit, version.BuildTime)

	fyneApp := fyneapp.New()
	fyneApp.Settings().SetTheme(&app.TakeoffTheme{})

	state := app.NewState(store.NewMemory())
	mw := mainwindow.New(fyneApp, state)

	if len(os.Args) > 1 {
		mw.OpenProject(os.Args[1])
	}

	// During development, offer to restart into a rebuilt binary.
	if reloader := app.NewHotReloader(2 * time.Second); reloader != nil {
		reloader.OnNewBinary(func() {
			dialog.ShowConfirm("New Build",
				"A newer binary is available. Restart now?",
				func(ok bool) {
					if !ok {
						reloader.ResetBaseline()
						reloader.Start()
						return
					}
					if err := reloader.Restart(); err != nil {
						log.Printf("restart failed: %v", err)
					}
				}, mw.Window())
		})
		reloader.Start()
	}

	mw.ShowAndRun()
}
