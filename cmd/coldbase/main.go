package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/coldbase/coldbase/bootstrap"
	"github.com/coldbase/coldbase/configuration"
)

var banner = `
  ____      _     _ _
 / ___|___ | | __| | |__   __ _ ___  ___
| |   / _ \| |/ _  | '_ \ / _  / __|/ _ \
| |__| (_) | | (_| | |_) | (_| \__ \  __/
 \____\___/|_|\__,_|_.__/ \__,_|___/\___|
                              version ` + bootstrap.VERSION + `
`

func main() {

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "compact", "vacuum":
			runMaintenance(os.Args[1], os.Args[2:])
			return
		}
	}

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	start, _ := bootstrap.Bootstrap(&c)
	start()
}
