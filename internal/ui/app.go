package ui

import (
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/edaniels/golog"

	"skywatch/internal/config"
	"skywatch/internal/ui/cwidget"
	"skywatch/processing/capture"
	"skywatch/processing/pipeline"
)

// DetectApp is the desktop shell around the pipeline: it issues
// Start/Stop commands, paints whatever frame the controller's mailbox
// holds and surfaces reported errors. All pipeline work happens off
// the UI thread.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	ctl    *pipeline.Controller
	logger golog.Logger

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	videoCanvas *canvas.Image
	stateLabel  *widget.Label
	fpsLabel    *widget.Label
	errorLabel  *widget.Label
}

func CreateApp(ctl *pipeline.Controller, cfg *config.Config, logger golog.Logger) *DetectApp {
	a := app.New()
	w := a.NewWindow("Skywatch")

	w.Resize(fyne.NewSize(1200, 600))

	return &DetectApp{
		fyneApp: a,
		mainWin: w,
		ctl:     ctl,
		config:  cfg,
		logger:  logger,
	}
}

func (a *DetectApp) Run() {
	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		a.config.ActiveSource = config.SourceType(s)
		a.refreshSettingsUI(s)
	})

	sourceTypeSelect.SetSelected(string(a.config.ActiveSource))

	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(640, 480))

	a.stateLabel = widget.NewLabel("State: idle")
	a.fpsLabel = widget.NewLabel("FPS: 0")
	a.errorLabel = widget.NewLabel("")
	a.errorLabel.Importance = widget.DangerImportance

	videoContainer := container.NewBorder(
		container.NewHBox(a.stateLabel, widget.NewSeparator(), a.fpsLabel, widget.NewSeparator(), a.errorLabel),
		nil, nil, nil,
		a.videoCanvas,
	)

	a.setupConfigSettings()

	sidebar := container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		widget.NewLabel("Source Type:"),
		sourceTypeSelect,
		widget.NewSeparator(),
		a.dynamicSettings,
		a.staticSettings,
		widget.NewSeparator(),
		widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), func() {
			a.startPipeline()
		}),
		widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), func() {
			a.ctl.Stop()
		}),
	)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(split)

	a.refreshSettingsUI(string(a.config.ActiveSource))

	go a.runPlayerLoop()
	go a.runStatLoop()

	a.mainWin.SetCloseIntercept(func() {
		a.ctl.Stop()
		// The engine is torn down right after the window closes; the
		// worker must be out of Detect by then.
		a.ctl.Wait()
		a.config.SaveByDefault()
		a.mainWin.Close()
	})

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// startPipeline kicks resolution off the UI thread; resolving a
// remote URL can take seconds.
func (a *DetectApp) startPipeline() {
	desc := a.config.Descriptor()
	go func() {
		if err := a.ctl.Start(desc); err != nil {
			fyne.Do(func() {
				dialog.ShowError(err, a.mainWin)
			})
		}
	}()
}

// ReportError receives every error the controller reports. Transient
// hiccups land in the status bar; anything else gets a dialog.
func (a *DetectApp) ReportError(err error) {
	a.logger.Warnw("pipeline error", "error", err)
	fyne.Do(func() {
		a.errorLabel.SetText(err.Error())
		if !capture.IsTransient(err) {
			dialog.ShowError(err, a.mainWin)
		}
	})
}

func (a *DetectApp) runStatLoop() {
	uiTicker := time.NewTicker(time.Millisecond * 200)
	defer uiTicker.Stop()

	for range uiTicker.C {
		state := a.ctl.State()
		stats := a.ctl.Stats()
		fyne.Do(func() {
			a.stateLabel.SetText(fmt.Sprintf("State: %s", state))
			a.fpsLabel.SetText(fmt.Sprintf("FPS: %d  Latency: %d ms  Dropped: %d",
				stats.FPS, stats.Latency.Milliseconds(), stats.Dropped))
			if state == pipeline.StateRunning {
				a.errorLabel.SetText("")
			}
		})
	}
}

// runPlayerLoop paints the newest annotated frame at the display
// rate. The mailbox holds at most one frame, so a slow repaint only
// drops intermediate frames, never queues them.
func (a *DetectApp) runPlayerLoop() {
	fps := a.config.GetFPS()
	if fps == 0 {
		fps = 24
	}
	displayTicker := time.NewTicker(time.Second / time.Duration(fps))
	defer displayTicker.Stop()

	for range displayTicker.C {
		frame := a.ctl.Frames().TryRecv()
		if frame == nil {
			continue
		}
		fyne.Do(func() {
			a.videoCanvas.Image = frame
			a.videoCanvas.Refresh()
		})
	}
}

func (a *DetectApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	fpsInput := cwidget.NewIntInput(
		"FPS",
		"Enter integer",
		int(a.config.TargetFPS),
		func(i int) {
			a.config.SetFPS(uint(i))
		},
	)

	widthInput := cwidget.NewIntInput(
		"Width",
		"Enter integer",
		a.config.ScaledWidth,
		func(i int) {
			a.config.SetWidth(i)
		},
	)

	heightInput := cwidget.NewIntInput(
		"Height",
		"Enter integer",
		a.config.ScaledHeight,
		func(i int) {
			a.config.SetHeight(i)
		},
	)

	confInput := cwidget.NewFloatInput(
		"Confidence",
		"0.0 - 1.0",
		float64(a.config.Model.Confidence),
		func(f float64) {
			a.config.SetConfidence(float32(f))
		},
	)

	applyCfg := widget.NewButton("Apply and restart", func() {
		a.startPipeline()
	})

	a.staticSettings.Add(fpsInput)
	a.staticSettings.Add(widthInput)
	a.staticSettings.Add(heightInput)
	a.staticSettings.Add(confInput)

	a.staticSettings.Add(applyCfg)
}

func (a *DetectApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil
	a.ctl.Stop()

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.Local.Path)

		pathEntry.OnChanged = func(s string) {
			a.config.Local.Path = s
		}

		fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					path := reader.URI().Path()
					pathEntry.SetText(path)
				}
			}, a.mainWin)
		})

		a.dynamicSettings.Add(widget.NewLabel("Video Path:"))
		a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect([]string{"Loading cameras..."}, func(s string) {
			if s != "Loading cameras..." && s != "No cameras found" {
				a.config.Webcam.DeviceID = s
			}
		})
		deviceSelect.SetSelected("Loading cameras...")
		deviceSelect.Disable()

		a.dynamicSettings.Add(widget.NewLabel("Select Camera:"))
		a.dynamicSettings.Add(deviceSelect)
		a.dynamicSettings.Refresh()

		go func() {
			devices, err := capture.ListDevices()

			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, a.mainWin)
					deviceSelect.Options = []string{"Error listing cameras"}
				} else if len(devices) == 0 {
					deviceSelect.Options = []string{"No cameras found"}
				} else {
					deviceSelect.Options = devices
					deviceSelect.Enable()

					if a.config.Webcam.DeviceID != "" {
						deviceSelect.SetSelected(a.config.Webcam.DeviceID)
					} else {
						deviceSelect.SetSelected(devices[0])
					}
				}
				deviceSelect.Refresh()
			})
		}()

	case config.SourceRemote:
		urlEntry := widget.NewEntry()
		urlEntry.SetPlaceHolder("https://youtube.com/...")
		urlEntry.SetText(a.config.Remote.URL)
		urlEntry.OnChanged = func(s string) {
			a.config.Remote.URL = s
		}

		a.dynamicSettings.Add(widget.NewLabel("Stream URL:"))
		a.dynamicSettings.Add(urlEntry)
	}

	a.dynamicSettings.Refresh()
}
