package main

import (
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/familyreel/capture-agent/pkg/capture"
	"github.com/familyreel/capture-agent/pkg/clock"
	"github.com/familyreel/capture-agent/pkg/flow"
	"github.com/familyreel/capture-agent/pkg/http/rest"
	"github.com/familyreel/capture-agent/pkg/invite"
	"github.com/familyreel/capture-agent/pkg/upload"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
)

func getEnvOrFail(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("%s not set", key)
	}
	return val
}

func main() {
	// Get env variables
	port := getEnvOrFail("APP_PORT")
	lkURL := getEnvOrFail("LIVEKIT_URL")
	lkAPIKey := getEnvOrFail("LIVEKIT_API_KEY")
	lkAPISecret := getEnvOrFail("LIVEKIT_API_SECRET")
	inviteURL := getEnvOrFail("INVITE_SERVICE_URL")
	inviteToken := getEnvOrFail("INVITE_SERVICE_TOKEN")
	s3Region := getEnvOrFail("S3_REGION")
	s3Bucket := getEnvOrFail("S3_BUCKET")
	logLevel := os.Getenv("LOG_LEVEL")

	// Get log verbosity
	var verbosity log.Lvl
	switch strings.ToLower(logLevel) {
	case "debug":
		verbosity = log.DEBUG
	case "info":
		verbosity = log.INFO
	case "warn":
		verbosity = log.WARN
	case "error":
		fallthrough
	default:
		verbosity = log.ERROR
	}
	log.SetLevel(verbosity)
	log.SetHeader("(${short_file}:${line}) ${time_rfc3339} ${level}: ")

	// Check that ffmpeg is installed
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Fatal(err)
	}

	// Create the S3 uploader
	uploader, err := upload.NewS3Uploader(upload.S3Config{
		Region:    s3Region,
		Bucket:    s3Bucket,
		Directory: os.Getenv("S3_DIRECTORY"),
		BaseURL:   os.Getenv("S3_BASE_URL"),
	})
	if err != nil {
		log.Fatal(err)
	}

	// Create the capture device
	device, err := capture.NewLiveKitDevice(capture.LiveKitConfig{
		URL:       lkURL,
		APIKey:    lkAPIKey,
		APISecret: lkAPISecret,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Initialise flow service
	invites := invite.NewClient(inviteURL, inviteToken)
	service := flow.NewService(device, uploader, invites, clock.New(), nil)
	defer service.Shutdown()

	// Initialise flow controller
	controller := rest.NewFlowController(service)

	// Initialise server
	e := echo.New()

	// Attach middlewares
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "(${host}) ${time_rfc3339} ${level}: ${method} ${uri} ${status} ${error}\n",
	}))

	// Attach handlers
	e.GET("/health-check", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	// Attach flow handlers
	e.POST("/flows/start", controller.StartFlow)
	e.POST("/flows/grant", controller.Grant)
	e.POST("/flows/record", controller.StartRecording)
	e.POST("/flows/stop", controller.StopRecording)
	e.POST("/flows/retake", controller.Retake)
	e.POST("/flows/continue", controller.Continue)
	e.POST("/flows/text", controller.SubmitText)
	e.POST("/flows/close", controller.CloseFlow)
	e.GET("/flows/status", controller.FlowStatus)

	// Start server
	e.Logger.Fatal(e.Start(":" + port))
}
