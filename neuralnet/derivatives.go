package neuralnet

import "github.com/pkg/errors"

// Node derivatives are a slow reference path: each value is built from the
// chain rule one layer at a time and memoized until the next forward pass
// or parameter change. Training uses CalculateLossDerivatives instead.

type weightKey struct {
	layer, node, wStartLayer, wEndNode, wStartNode int
}

type biasKey struct {
	layer, node, bStartLayer, bEndNode int
}

type nodeKey struct {
	endLayer, endNode, startLayer, startNode int
}

// NodeToWeightDerivative returns d nodes[layer][node] / d w, where w is the
// weight from wStartNode in layer wStartLayer to wEndNode in layer
// wStartLayer+1. GetOutputValues must have been called first.
func (nn *NeuralNet) NodeToWeightDerivative(layer, node, wStartLayer, wEndNode, wStartNode int) (float64, error) {
	if err := nn.checkEvaluated(); err != nil {
		return 0, err
	}
	if err := nn.checkNode(layer, node); err != nil {
		return 0, err
	}
	if err := nn.checkWeight(wStartLayer, wEndNode, wStartNode); err != nil {
		return 0, err
	}
	return nn.nodeToWeight(layer, node, wStartLayer, wEndNode, wStartNode), nil
}

// NodeToBiasDerivative returns d nodes[layer][node] / d b, where b is the
// bias of bEndNode in layer bStartLayer+1.
func (nn *NeuralNet) NodeToBiasDerivative(layer, node, bStartLayer, bEndNode int) (float64, error) {
	if err := nn.checkEvaluated(); err != nil {
		return 0, err
	}
	if err := nn.checkNode(layer, node); err != nil {
		return 0, err
	}
	if bStartLayer < 0 || bStartLayer >= len(nn.transforms) {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "layer transform %d", bStartLayer)
	}
	if err := nn.checkNode(bStartLayer+1, bEndNode); err != nil {
		return 0, err
	}
	return nn.nodeToBias(layer, node, bStartLayer, bEndNode), nil
}

// NodeToNodeDerivative returns d nodes[endLayer][endNode] / d nodes[startLayer][startNode].
func (nn *NeuralNet) NodeToNodeDerivative(endLayer, endNode, startLayer, startNode int) (float64, error) {
	if err := nn.checkEvaluated(); err != nil {
		return 0, err
	}
	if err := nn.checkNode(endLayer, endNode); err != nil {
		return 0, err
	}
	if err := nn.checkNode(startLayer, startNode); err != nil {
		return 0, err
	}
	return nn.nodeToNode(endLayer, endNode, startLayer, startNode), nil
}

func (nn *NeuralNet) nodeToWeight(layer, node, wStartLayer, wEndNode, wStartNode int) float64 {
	key := weightKey{layer, node, wStartLayer, wEndNode, wStartNode}
	if v, ok := nn.nodeToWeightCache[key]; ok {
		return v
	}
	var derivative float64
	switch {
	case layer == wStartLayer+1:
		// node = act(w*start + ...), so d node/dw = act'(node) * start
		if wEndNode == node {
			derivative = nn.transforms[wStartLayer].ActivationDerivative(nn.nodes[layer].AtVec(node)) *
				nn.nodes[layer-1].AtVec(wStartNode)
		}
	case wStartLayer+1 < layer:
		for i := 0; i < nn.nodes[layer-1].Len(); i++ {
			derivative += nn.nodeToNode(layer, node, layer-1, i) *
				nn.nodeToWeight(layer-1, i, wStartLayer, wEndNode, wStartNode)
		}
	default:
		// the weight comes after this node
		return 0
	}
	nn.nodeToWeightCache[key] = derivative
	return derivative
}

func (nn *NeuralNet) nodeToBias(layer, node, bStartLayer, bEndNode int) float64 {
	key := biasKey{layer, node, bStartLayer, bEndNode}
	if v, ok := nn.nodeToBiasCache[key]; ok {
		return v
	}
	var derivative float64
	switch {
	case layer == bStartLayer+1:
		if bEndNode == node {
			derivative = nn.transforms[bStartLayer].ActivationDerivative(nn.nodes[layer].AtVec(node))
		}
	case bStartLayer+1 < layer:
		for i := 0; i < nn.nodes[layer-1].Len(); i++ {
			derivative += nn.nodeToNode(layer, node, layer-1, i) *
				nn.nodeToBias(layer-1, i, bStartLayer, bEndNode)
		}
	default:
		return 0
	}
	nn.nodeToBiasCache[key] = derivative
	return derivative
}

func (nn *NeuralNet) nodeToNode(endLayer, endNode, startLayer, startNode int) float64 {
	key := nodeKey{endLayer, endNode, startLayer, startNode}
	if v, ok := nn.nodeToNodeCache[key]; ok {
		return v
	}
	var derivative float64
	switch {
	case endLayer == startLayer+1:
		t := nn.transforms[startLayer]
		derivative = t.ActivationDerivative(nn.nodes[endLayer].AtVec(endNode)) * t.weights.At(endNode, startNode)
	case startLayer+1 < endLayer:
		for i := 0; i < nn.nodes[endLayer-1].Len(); i++ {
			derivative += nn.nodeToNode(endLayer, endNode, endLayer-1, i) *
				nn.nodeToNode(endLayer-1, i, startLayer, startNode)
		}
	default:
		return 0
	}
	nn.nodeToNodeCache[key] = derivative
	return derivative
}

func (nn *NeuralNet) checkEvaluated() error {
	if !nn.evaluated {
		return ErrNotEvaluated
	}
	return nil
}

func (nn *NeuralNet) checkNode(layer, node int) error {
	if layer < 0 || layer >= len(nn.nodes) || node < 0 || node >= nn.nodes[layer].Len() {
		return errors.Wrapf(ErrIndexOutOfRange, "node %d in layer %d", node, layer)
	}
	return nil
}

func (nn *NeuralNet) checkWeight(startLayer, endNode, startNode int) error {
	if startLayer < 0 || startLayer >= len(nn.transforms) {
		return errors.Wrapf(ErrIndexOutOfRange, "layer transform %d", startLayer)
	}
	if err := nn.checkNode(startLayer, startNode); err != nil {
		return err
	}
	return nn.checkNode(startLayer+1, endNode)
}
