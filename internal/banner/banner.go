package banner

import "fmt"

const Version = "1.0.0"

func Print() {
	banner := `
    __          __    _       __      __       __
   / /   ____ _/ /_  | |     / /___ _/ /______/ /_
  / /   / __  / __ \ | | /| / / __  / __/ ___/ __ \
 / /___/ /_/ / /_/ / | |/ |/ / /_/ / /_/ /__/ / / /
/_____/\__,_/_.___/  |__/|__/\__,_/\__/\___/_/ /_/
                     v%s - Lab Alerting Service
    `
	fmt.Printf(banner, Version)
	fmt.Println("\n------------------------------------------------")
}
