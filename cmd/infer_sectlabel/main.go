package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sectlabel/config"
	"sectlabel/engine"
	"sectlabel/inference"
)

func main() {
	saveDir := flag.String("save-dir", "output", "training output directory with the manifest and checkpoints")
	checkpoint := flag.String("checkpoint", "", "checkpoint to load, defaults to the best model in the save directory")
	showConfusion := flag.Bool("confusion", false, "print the confusion matrix")
	trueClass := flag.String("true", "", "with -pred, list the sentences of this true class")
	predClass := flag.String("pred", "", "with -true, list the sentences predicted as this class")
	flag.Parse()

	if (*trueClass == "") != (*predClass == "") {
		fmt.Fprintln(os.Stderr, "-true and -pred must be given together")
		os.Exit(2)
	}
	if err := run(*saveDir, *checkpoint, *showConfusion, *trueClass, *predClass); err != nil {
		log.Fatal(err)
	}
}

func run(saveDir, checkpoint string, showConfusion bool, trueClass, predClass string) error {
	hp, err := config.Load(filepath.Join(saveDir, config.ManifestName))
	if err != nil {
		return err
	}
	if checkpoint == "" {
		checkpoint = filepath.Join(saveDir, engine.BestCheckpointName)
	}

	r, err := inference.New(checkpoint, hp)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := r.Run(); err != nil {
		return err
	}
	fmt.Println(r.Report())
	if showConfusion {
		fmt.Println(r.ConfusionString())
	}

	if trueClass != "" {
		ti, err := r.ClassIndex(trueClass)
		if err != nil {
			return err
		}
		pi, err := r.ClassIndex(predClass)
		if err != nil {
			return err
		}
		sentences := r.MisclassifiedSentences(ti, pi)
		fmt.Printf("%d sentences with true class %s predicted as %s\n", len(sentences), trueClass, predClass)
		for _, s := range sentences {
			fmt.Println("  " + s)
		}
	}
	return nil
}
