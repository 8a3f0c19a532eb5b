package main

import (
	"fmt"

	"github.com/fatih/color"
)

const helpString = `MJPEG camera streaming over HTTPS

Usage: mjpegcamd [OPTION]...

Network:
      --host=ADDR        Address to listen on (default: 0.0.0.0)
  -p, --port=NUM         Port to listen on (default: 8443)
      --max-clients=NUM  Maximum simultaneous connections (default: unlimited)
      --websocket        Also stream frames over a websocket at /stream.ws
      --write-timeout=D  Drop clients that take longer than D to accept a
                         frame, e.g. 5s (default: no limit)

Authentication:
  -c, --cert=FILE        TLS certificate (default: cert.pem)
  -k, --key=FILE         TLS private key (default: key.pem)
      --self-signed      Generate a self-signed certificate at startup
                         instead of loading --cert and --key

Video source:
  -i, --source=SPEC      Frame source (default: /dev/video0). One of
                           v4l2:/dev/videoN   Video4Linux2 MJPEG camera
                           pipe:-             Concatenated JPEGs on stdin
                           file:PATH          MJPEG file
                           pattern:           Synthetic test pattern
  -x, --width=NUM        Set video width (default: 640)
  -y, --height=NUM       Set video height (default: 480)
  -q, --quality=NUM      JPEG quality, 1-100 (default: 80)
      --fps=NUM          Frame rate of file and pattern sources (default: 30)
      --loop             Restart a file source when it ends
      --hflip            Flip video horizontally
      --vflip            Flip video vertically

Miscellaneous:
      --log-level=LIST   Log levels, e.g. "info" or "debug,v4l2=trace"
  -h, --help             Prints this help message and exits
  -v, --version          Prints version information and exits

Please report bugs to: aloha@lanikailabs.com`

// "m", "jpeg" and "cam" columns of the banner.
var banner = [][3]string{
	{"           ", "   _                     ", "                        "},
	{" _ __ ___  ", "  (_) _ __    ___   __ _ ", "  ___   __ _  _ __ ___  "},
	{"| '_ ` _ \\ ", "  | || '_ \\  / _ \\ / _` |", " / __| / _` || '_ ` _ \\ "},
	{"| | | | | |", "  | || |_) ||  __/| (_| |", "| (__ | (_| || | | | | |"},
	{"|_| |_| |_|", " _/ || .__/  \\___| \\__, |", " \\___| \\__,_||_| |_| |_|"},
	{"           ", "|__/ |_|           |___/ ", "                        "},
}

// Help information is printed and program exits
func help() {
	r := color.New(color.FgRed)
	y := color.New(color.FgYellow)
	b := color.New(color.FgCyan)

	for _, line := range banner {
		r.Print(line[0])
		y.Print(line[1])
		b.Println(line[2])
	}

	fmt.Println(helpString)
}

// version displays information and exits successfully (GNU convention)
func version() {
	fmt.Println("mjpegcamd", GitRevisionId)
	fmt.Println("Copyright 2019 Lanikai Labs LLC. All rights reserved.")
}
