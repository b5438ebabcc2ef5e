// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/umbra/core"
	"github.com/devblok/umbra/gfx/vkr"
)

var (
	debug  = flag.Bool("vkdbg", false, "Load Vulkan validation layers")
	indent = flag.Bool("indent", false, "Indent the output")
)

func main() {
	flag.Parse()

	instance, err := vkr.NewInstance(nil, vkr.InstanceConfiguration{
		ApplicationName: "umbracli",
		DebugMode:       *debug,
	})
	if err != nil {
		log.WithError(err).Fatal("Creating instance")
	}
	defer instance.Destroy()

	devices := instance.PhysicalDevices()
	if selected, err := core.SelectPhysicalDevice(devices); err == nil {
		log.WithField("device", devices[selected].Name).Info("Would render with")
	} else {
		log.WithError(err).Warn("No suitable device")
	}

	var bytes []byte
	if *indent {
		bytes, err = json.MarshalIndent(devices, "", "  ")
	} else {
		bytes, err = json.Marshal(devices)
	}
	if err != nil {
		log.WithError(err).Fatal("Encoding devices")
	}
	fmt.Printf("%s\n", bytes)
}
